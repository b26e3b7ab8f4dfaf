// Package stages holds the concrete processing stages and the two workflow
// presets built from them.
package stages

import (
	"context"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/pipeline"
)

// Passthrough returns its input unchanged.
func Passthrough(_ context.Context, in artifact.Artifact) (artifact.Artifact, error) {
	return in, nil
}

// Delay waits d before running next. The wait ends early with ctx.Err() when
// ctx is done, so a cancelled run does not sit out the rest of the stage.
func Delay(d time.Duration, next pipeline.Handler) pipeline.Handler {
	if next == nil {
		next = Passthrough
	}

	return func(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error) {
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return artifact.Artifact{}, ctx.Err()
			case <-timer.C:
			}
		}

		return next(ctx, in)
	}
}
