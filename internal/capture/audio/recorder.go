package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Recorder drains raw PCM packets from a channel into a file until the
// channel is closed.
type Recorder struct {
	path  string
	input <-chan DataPacket

	file    *os.File
	written atomic.Int64
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewRecorder creates a recorder writing S16LE samples to path.
func NewRecorder(path string, input <-chan DataPacket) (*Recorder, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if path == "" {
		return nil, errors.New("PCM path cannot be empty")
	}

	return &Recorder{path: path, input: input}, nil //nolint:exhaustruct // sync fields zero valued
}

// Start creates the output file and begins draining input. It keeps going
// until input is closed so no captured packet is lost on shutdown.
func (r *Recorder) Start() error {
	if r.file != nil {
		return errors.New("recorder already started")
	}

	file, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create PCM file %s: %w", r.path, err)
	}

	r.file = file

	r.wg.Go(func() {
		defer func() {
			if err := r.file.Close(); err != nil {
				r.setError(fmt.Errorf("failed to close PCM file: %w", err))
			}
		}()

		for data := range r.input {
			n, err := r.file.Write(data)
			if err != nil {
				r.setError(fmt.Errorf("failed to write PCM data: %w", err))
				// keep draining so the broadcaster never blocks on us
				continue
			}

			r.written.Add(int64(n))
		}
	})

	return nil
}

// Wait blocks until the input channel is closed and the file is flushed.
func (r *Recorder) Wait() error {
	r.wg.Wait()
	return r.err
}

// Path returns the PCM file path.
func (r *Recorder) Path() string {
	return r.path
}

// BytesWritten returns the number of PCM bytes written so far.
func (r *Recorder) BytesWritten() int64 {
	return r.written.Load()
}

func (r *Recorder) setError(err error) {
	r.errOnce.Do(func() {
		r.err = err
		slog.Error("audio recorder error", "error", err)
	})
}
