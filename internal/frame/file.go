package frame

import (
	"fmt"
	"os"
	"sync/atomic"
)

// FileSource serves whatever image currently sits at Path. Another process
// (or a previous capture) is expected to keep replacing the file.
type FileSource struct {
	Path string
	seq  atomic.Uint64
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Latest() (*Frame, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnavailable, s.Path)
	}

	return &Frame{
		Seq:        s.seq.Add(1),
		CapturedAt: info.ModTime(),
		JPEG:       data,
	}, nil
}
