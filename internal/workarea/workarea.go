// Package workarea manages the private temporary directory each download
// request owns while the downloader writes into it.
package workarea

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Pattern names every work area so stale ones can be found again.
const Pattern = "ytconvert-*"

// In-progress fragments the downloader may leave next to the real output.
var SkippedExtensions = []string{".part", ".ytdl"}

var (
	ErrArtifactNotFound  = errors.New("yt-dlp completed but no output file was found")
	ErrAmbiguousArtifact = errors.New("yt-dlp produced an ambiguous result")
)

type Area struct {
	dir string
}

// New creates a fresh, uniquely named directory under root (os.TempDir() when
// empty). Concurrent callers never share a directory.
func New(root string) (*Area, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(root, Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create work area: %w", err)
	}
	return &Area{dir: dir}, nil
}

func (a *Area) Dir() string {
	return a.dir
}

// OutputTemplate roots a downloader output template inside the area.
func (a *Area) OutputTemplate(name string) string {
	return filepath.Join(a.dir, name)
}

// Artifact returns the path of the single file in the area. Zero files gives
// ErrArtifactNotFound, several give ErrAmbiguousArtifact.
func (a *Area) Artifact() (string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return "", fmt.Errorf("failed to list work area: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || isSkipped(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: expected exactly one file, found 0", ErrArtifactNotFound)
	case 1:
		return filepath.Join(a.dir, files[0]), nil
	default:
		return "", fmt.Errorf("%w: expected exactly one file, found %d (%s)",
			ErrAmbiguousArtifact, len(files), strings.Join(files, ", "))
	}
}

// Close removes the area and everything in it.
func (a *Area) Close() error {
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("failed to remove work area %s: %w", a.dir, err)
	}
	return nil
}

func isSkipped(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SkippedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Sweep removes work areas under root last modified before now-olderThan and
// returns the paths it removed. Younger areas are left alone.
func Sweep(root string, olderThan time.Duration, now time.Time) ([]string, error) {
	if root == "" {
		root = os.TempDir()
	}
	matches, err := filepath.Glob(filepath.Join(root, Pattern))
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-olderThan)
	var removed []string
	var result *multierror.Error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				result = multierror.Append(result, err)
			}
			continue
		}
		if !info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, result.ErrorOrNil()
}
