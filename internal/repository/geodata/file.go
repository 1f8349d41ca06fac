package geodata

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads the document from the local filesystem.
type FileSource struct {
	path     string
	maxBytes int64
}

// NewFileSource creates a file source.
func NewFileSource(path string, maxBytes int64) *FileSource {
	return &FileSource{path: path, maxBytes: maxBytes}
}

// Fetch reads the file.
func (s *FileSource) Fetch(_ context.Context) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	return readLimited(f, s.maxBytes)
}

func (s *FileSource) String() string { return "file:" + s.path }
