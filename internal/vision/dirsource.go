package vision

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
)

// DirSource replays frames from a directory of image files in lexical order.
// It stands in for a live camera during offline runs and tests.
type DirSource struct {
	files []string
	next  int
}

// NewDirSource lists the supported image files under dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	return &DirSource{files: files}, nil
}

// Read decodes the next frame. Returns ErrSourceExhausted after the last
// file; a corrupt file is a read failure, not exhaustion.
func (s *DirSource) Read() (image.Image, error) {
	if s.next >= len(s.files) {
		return nil, ErrSourceExhausted
	}

	path := s.files[s.next]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

// Close implements FrameSource. Directory replay holds no resources open
// between reads.
func (s *DirSource) Close() error {
	return nil
}

// Remaining returns the number of frames not yet read.
func (s *DirSource) Remaining() int {
	return len(s.files) - s.next
}
