package geodata

import (
	"context"
	"slices"
)

// BytesSource serves an in-memory document (embedded data sets, SDK callers).
type BytesSource struct {
	data []byte
}

// NewBytesSource copies data.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: slices.Clone(data)}
}

// Fetch returns a copy of the document.
func (s *BytesSource) Fetch(_ context.Context) ([]byte, error) {
	return slices.Clone(s.data), nil
}

func (s *BytesSource) String() string { return "memory" }
