package stages

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/mp3"
	"github.com/alkime/wardrobe/internal/pipeline"
)

// EncodeMP3 converts a PCM recording into an MP3 next to it.
func EncodeMP3(config mp3.EncoderConfig) pipeline.Handler {
	return func(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error) {
		dst := replaceExt(in.Path, ".mp3")

		if err := mp3.EncodeFile(ctx, config, in.Path, dst); err != nil {
			return artifact.Artifact{}, err
		}

		return artifact.FromFile(dst, artifact.MediaTypeMP3)
	}
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
