package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// Directory replays the image files of a directory in name order, looping
// forever. Used for kiosk demos and the scan command.
type Directory struct {
	Path string
}

// Open lists the images once; an empty or missing directory is ErrUnavailable.
func (d Directory) Open(ctx context.Context) (Stream, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(d.Path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrUnavailable, d.Path)
	}
	slices.Sort(files)

	return &directoryStream{files: files}, nil
}

type directoryStream struct {
	mu     sync.Mutex
	files  []string
	next   int
	closed bool
}

func (s *directoryStream) Frame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

func (s *directoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
