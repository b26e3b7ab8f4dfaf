package stages

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/pipeline"
)

// AvatarFile is the name of the generated model.
const AvatarFile = "avatar.glb"

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbHeaderLen = 12
	glbChunkHdr  = 8
)

const placeholderScene = `{"asset":{"version":"2.0","generator":"wardrobe placeholder"},"scenes":[{"nodes":[]}],"scene":0}`

// PlaceholderGLB returns a valid, empty binary glTF 2.0 document.
func PlaceholderGLB() []byte {
	doc := []byte(placeholderScene)

	// chunks are 4-byte aligned; JSON pads with spaces
	for len(doc)%4 != 0 {
		doc = append(doc, ' ')
	}

	total := glbHeaderLen + glbChunkHdr + len(doc)

	var buf bytes.Buffer
	buf.Grow(total)

	for _, v := range []uint32{glbMagic, glbVersion, uint32(total), uint32(len(doc)), glbChunkJSON} { //nolint:gosec // small constant sizes
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	buf.Write(doc)

	return buf.Bytes()
}

// GenerateAvatar writes the placeholder model into dir.
func GenerateAvatar(dir string) pipeline.Handler {
	return func(_ context.Context, _ artifact.Artifact) (artifact.Artifact, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return artifact.Artifact{}, fmt.Errorf("failed to create output directory: %w", err)
		}

		path := filepath.Join(dir, AvatarFile)

		//nolint:gosec // generated model is not secret
		if err := os.WriteFile(path, PlaceholderGLB(), 0o644); err != nil {
			return artifact.Artifact{}, fmt.Errorf("failed to write model: %w", err)
		}

		return artifact.FromFile(path, artifact.MediaTypeGLB)
	}
}
