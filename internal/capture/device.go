// Package capture defines the device contract the workflow controller drives
// while a capture is in progress.
package capture

import (
	"context"
	"errors"

	"github.com/alkime/wardrobe/internal/artifact"
)

var (
	// ErrDeviceUnavailable means no usable device could be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrPermissionDenied means the OS or user refused access to the device.
	ErrPermissionDenied = errors.New("capture device permission denied")
	// ErrNotAcquired is returned by Start and Stop before Acquire succeeds.
	ErrNotAcquired = errors.New("capture device not acquired")
	// ErrNotStarted is returned by Stop when no recording is running.
	ErrNotStarted = errors.New("capture device not started")
)

// Device is a capture source owned exclusively by one workflow while it is
// capturing.
//
// The lifecycle is Acquire, Start, Stop, Release. Release must be safe to call
// after a failed Start or Stop and must free every OS handle the device holds.
type Device interface {
	// Acquire opens the underlying hardware. It fails with
	// ErrDeviceUnavailable or ErrPermissionDenied.
	Acquire(ctx context.Context) error

	// Start begins recording.
	Start(ctx context.Context) error

	// Stop ends recording and returns the raw recording.
	Stop(ctx context.Context) (artifact.Artifact, error)

	// Release frees the device. Calling it more than once is a no-op.
	Release(ctx context.Context)
}
