package framestore

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lookout/internal/frame"
)

// ErrNoMatch means no stored frame fits the search.
var ErrNoMatch = errors.New("no matching frame")

// Ref points at a stored frame.
type Ref struct {
	ID         string
	Tag        string
	Key        string
	Caption    string
	CapturedAt time.Time
}

type Captioner interface {
	Caption(ctx context.Context, f *frame.Frame) (string, error)
}

// Store persists frames for later recall. The image goes to Blobs, its
// caption and metadata to the DuckDB index the keyword search runs on.
type Store struct {
	index     *Index
	blobs     Blobs
	captioner Captioner
}

func New(index *Index, blobs Blobs, captioner Captioner) *Store {
	return &Store{index: index, blobs: blobs, captioner: captioner}
}

func (s *Store) Save(ctx context.Context, f *frame.Frame, tag string) (Ref, error) {
	caption, err := s.captioner.Caption(ctx, f)
	if err != nil {
		return Ref{}, fmt.Errorf("caption frame: %w", err)
	}

	id := uuid.New().String()
	ref := Ref{
		ID:         id,
		Tag:        tag,
		Key:        id + ".jpeg",
		Caption:    caption,
		CapturedAt: f.CapturedAt,
	}
	if ref.CapturedAt.IsZero() {
		ref.CapturedAt = time.Now()
	}

	if err := s.blobs.Put(ctx, ref.Key, f.JPEG); err != nil {
		return Ref{}, err
	}
	if err := s.index.Insert(ctx, ref); err != nil {
		return Ref{}, err
	}

	log.Debug("Stored frame", "id", ref.ID, "tag", tag, "caption", caption)
	return ref, nil
}

// Search finds the best matching frame for space separated keywords.
func (s *Store) Search(ctx context.Context, keywords string) (Ref, error) {
	ref, err := s.index.Best(ctx, strings.Fields(keywords))
	if err != nil {
		return Ref{}, err
	}
	log.Info("Recalled frame", "id", ref.ID, "caption", ref.Caption, "captured_at", ref.CapturedAt)
	return ref, nil
}

func (s *Store) Load(ctx context.Context, ref Ref) (*frame.Frame, error) {
	data, err := s.blobs.Get(ctx, ref.Key)
	if err != nil {
		return nil, err
	}
	return &frame.Frame{CapturedAt: ref.CapturedAt, JPEG: data}, nil
}

func (s *Store) Close() error {
	return s.index.Close()
}
