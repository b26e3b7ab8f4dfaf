package mp3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// EncodeFile streams the PCM file at src through a StreamingEncoder into a new
// MP3 file at dst. Reading stops as soon as ctx is done; a partial dst is
// removed on any error.
func EncodeFile(ctx context.Context, config EncoderConfig, src, dst string) (err error) {
	config = config.WithDefaults()

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open PCM file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create MP3 file %s: %w", dst, err)
	}

	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close MP3 file: %w", cerr)
		}

		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	chunks := make(chan []byte, 4)

	enc, err := NewStreamingEncoder(config, chunks, out)
	if err != nil {
		return err
	}

	if err := enc.Start(ctx); err != nil {
		return err
	}

	readErr := feed(ctx, in, chunks, config.BufferThreshold)
	close(chunks)

	return errors.Join(readErr, enc.Wait())
}

func feed(ctx context.Context, r io.Reader, chunks chan<- []byte, size int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf := make([]byte, size)

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			select {
			case chunks <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read PCM file: %w", err)
		}
	}
}
