// Package download delivers finished CSV exports.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink receives a finished export.
// It returns where the file ended up, for notifications.
type Sink interface {
	Download(ctx context.Context, filename, content string) (string, error)
}

// DirSink writes exports into a local directory
type DirSink struct {
	dir string
}

// NewDirSink creates a sink writing into dir, creating it on first use
func NewDirSink(dir string) *DirSink {
	if dir == "" {
		dir = "."
	}
	return &DirSink{dir: dir}
}

func (d *DirSink) Download(_ context.Context, filename, content string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid export filename %q", filename)
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(d.dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// Multi delivers to every sink in order; the first location is reported
type Multi []Sink

func (m Multi) Download(ctx context.Context, filename, content string) (string, error) {
	var first string
	var errs []error
	for _, s := range m {
		loc, err := s.Download(ctx, filename, content)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = loc
		}
	}
	// One delivered copy is enough for the export to count as done
	if first == "" && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return first, nil
}
