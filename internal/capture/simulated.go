package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
)

// ManifestFile is the name of the raw recording a Simulated device writes.
const ManifestFile = "capture.json"

// Resolution of the simulated camera, matching a front-facing webcam.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Manifest is the raw recording of a simulated capture.
type Manifest struct {
	Device     string        `json:"device"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FacingMode string        `json:"facingMode"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// SimulatedConfig configures a Simulated device.
type SimulatedConfig struct {
	// Dir receives the capture manifest.
	Dir string
	// AcquireErr, when set, is returned from every Acquire.
	AcquireErr error
	// AcquireDelay simulates the wait for a permission prompt.
	AcquireDelay time.Duration
	Width        int
	Height       int
	Now          func() time.Time
}

// Simulated is a stand-in camera. It records nothing but the time it was
// running and writes a small JSON manifest as its raw artifact.
type Simulated struct {
	conf SimulatedConfig

	mu        sync.Mutex
	acquired  bool
	startedAt time.Time
	released  atomic.Int32
}

// NewSimulated creates a simulated camera.
func NewSimulated(conf SimulatedConfig) *Simulated {
	if conf.Width == 0 {
		conf.Width = DefaultWidth
	}

	if conf.Height == 0 {
		conf.Height = DefaultHeight
	}

	if conf.Now == nil {
		conf.Now = time.Now
	}

	return &Simulated{conf: conf}
}

func (s *Simulated) Acquire(ctx context.Context) error {
	if s.conf.AcquireDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.conf.AcquireDelay):
		}
	}

	if s.conf.AcquireErr != nil {
		return s.conf.AcquireErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.acquired = true
	s.startedAt = time.Time{}

	return nil
}

func (s *Simulated) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acquired {
		return ErrNotAcquired
	}

	s.startedAt = s.conf.Now()

	return nil
}

func (s *Simulated) Stop(_ context.Context) (artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acquired {
		return artifact.Artifact{}, ErrNotAcquired
	}

	if s.startedAt.IsZero() {
		return artifact.Artifact{}, ErrNotStarted
	}

	manifest := Manifest{
		Device:     "simulated-camera",
		Width:      s.conf.Width,
		Height:     s.conf.Height,
		FacingMode: "user",
		StartedAt:  s.startedAt,
		Duration:   s.conf.Now().Sub(s.startedAt),
	}
	s.startedAt = time.Time{}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to encode capture manifest: %w", err)
	}

	if err := os.MkdirAll(s.conf.Dir, 0o755); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to create capture directory: %w", err)
	}

	path := filepath.Join(s.conf.Dir, ManifestFile)
	//nolint:gosec // manifest is not secret
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to write capture manifest: %w", err)
	}

	return artifact.FromFile(path, artifact.MediaTypeJSON)
}

func (s *Simulated) Release(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acquired {
		return
	}

	s.acquired = false
	s.startedAt = time.Time{}
	s.released.Add(1)
}

// Releases reports how many times an acquired device was released.
func (s *Simulated) Releases() int {
	return int(s.released.Load())
}

// ReadManifest decodes a manifest written by a Simulated device.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read capture manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode capture manifest: %w", err)
	}

	return m, nil
}
