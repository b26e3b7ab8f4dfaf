// Package workdir lays out the directories a scan writes into.
//
// Each run gets its own directory under runs/, and results the user accepts
// are copied into library/, which is what the server publishes:
//
//	$HOME/Documents/Wardrobe/
//	  runs/<name>/     capture manifest or recording, stage outputs, scan.log
//	  library/         accepted artifacts
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// LogFile receives the TUI's log output inside a run directory.
	LogFile = "scan.log"

	runsDir    = "runs"
	libraryDir = "library"
)

// Layout resolves paths below a root directory.
type Layout struct {
	Root string
}

// Default returns the layout rooted at $HOME/Documents/Wardrobe.
func Default() (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("failed to get user home directory: %w", err)
	}

	return Layout{Root: filepath.Join(home, "Documents", "Wardrobe")}, nil
}

// New returns the layout rooted at root, or the default layout if root is empty.
func New(root string) (Layout, error) {
	if root == "" {
		return Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	return Layout{Root: abs}, nil
}

// RunDir is the directory for the run called name.
func (l Layout) RunDir(name string) string {
	return filepath.Join(l.Root, runsDir, name)
}

// LibraryDir holds accepted artifacts.
func (l Layout) LibraryDir() string {
	return filepath.Join(l.Root, libraryDir)
}

// Prep creates the run directory for name and returns it.
func (l Layout) Prep(name string) (string, error) {
	dir := l.RunDir(name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory %s: %w", dir, err)
	}

	return dir, nil
}

// RunName picks the directory name for a run: the sanitized name if one was
// given, otherwise a timestamp.
func RunName(name string, now time.Time) string {
	if s := SanitizeName(name); s != "" {
		return s
	}

	return "scan-" + now.Format("20060102-150405")
}

// SanitizeName makes name safe for use as a directory or file name by
// replacing path separators, reserved characters and whitespace with hyphens.
func SanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "-",
		"\t", "-",
	)

	sanitized := strings.Trim(replacer.Replace(name), " -.")

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}

	return sanitized
}
