package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrInvalidName is returned when an accepted artifact name would escape the
// library directory.
var ErrInvalidName = errors.New("invalid artifact name")

// ErrNotFound is returned by Get for a name the library does not hold.
var ErrNotFound = errors.New("artifact not found")

// Library is the directory accepted results are saved into. The artifact
// server serves the same directory for download.
type Library struct {
	dir string
}

// Entry describes one saved artifact.
type Entry struct {
	Name      string    `json:"name"`
	MediaType string    `json:"mediaType"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
}

// NewLibrary returns a library rooted at dir. The directory is created
// lazily on the first Save.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// Save copies the artifact into the library under name. When name has no
// extension the source extension is kept.
func (l *Library) Save(a Artifact, name string) (Artifact, error) {
	if a.IsZero() {
		return Artifact{}, errors.New("cannot save empty artifact")
	}

	if !validName(name) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if filepath.Ext(name) == "" {
		name += filepath.Ext(a.Path)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create library directory %s: %w", l.dir, err)
	}

	dst := filepath.Join(l.dir, name)
	if err := copyFile(a.Path, dst); err != nil {
		return Artifact{}, err
	}

	return FromFile(dst, a.MediaType)
}

// List returns saved artifacts, newest first.
func (l *Library) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}

		return nil, fmt.Errorf("failed to read library directory %s: %w", l.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))

	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}

		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}

		entries = append(entries, Entry{
			Name:      de.Name(),
			MediaType: MediaTypeForPath(de.Name()),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return b.ModTime.Compare(a.ModTime)
	})

	return entries, nil
}

// Get returns the entry saved under name.
func (l *Library) Get(name string) (Entry, error) {
	if !validName(name) {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	info, err := os.Stat(filepath.Join(l.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return Entry{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}

	if info.IsDir() {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return Entry{
		Name:      name,
		MediaType: MediaTypeForPath(name),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

// Path returns where name is stored. It does not check that the file exists.
func (l *Library) Path(name string) string {
	return filepath.Join(l.dir, name)
}

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return nil
}
