// Package artifact describes the files that flow through a capture workflow:
// the raw recording produced by a capture device, every intermediate stage
// output and the final result handed to the user.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	MediaTypePCM      = "audio/L16"
	MediaTypeMP3      = "audio/mpeg"
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeJSON     = "application/json"
	MediaTypeTOML     = "application/toml"
	MediaTypeGLB      = "model/gltf-binary"
	MediaTypeUnknown  = "application/octet-stream"
)

// Artifact is an opaque reference to a file on disk. Stages never hold the
// contents in memory longer than they need to; they pass references.
type Artifact struct {
	Path      string
	MediaType string
	Size      int64
}

// IsZero reports whether the artifact references nothing.
func (a Artifact) IsZero() bool {
	return a.Path == ""
}

// Name returns the base file name.
func (a Artifact) Name() string {
	if a.IsZero() {
		return ""
	}

	return filepath.Base(a.Path)
}

// FromFile builds an Artifact for an existing file, recording its size.
func FromFile(path, mediaType string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to stat artifact %s: %w", path, err)
	}

	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact %s is a directory", path)
	}

	if mediaType == "" {
		mediaType = MediaTypeForPath(path)
	}

	return Artifact{
		Path:      path,
		MediaType: mediaType,
		Size:      info.Size(),
	}, nil
}

// MediaTypeForPath guesses a media type from the file extension.
func MediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcm":
		return MediaTypePCM
	case ".mp3":
		return MediaTypeMP3
	case ".txt":
		return MediaTypeText
	case ".md":
		return MediaTypeMarkdown
	case ".json":
		return MediaTypeJSON
	case ".toml":
		return MediaTypeTOML
	case ".glb":
		return MediaTypeGLB
	default:
		return MediaTypeUnknown
	}
}
