package frame

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Slot holds the most recent frame. The capture path is the single writer;
// any number of readers may call Latest or Wait concurrently. A frame is
// published with one atomic pointer swap, so readers never see a half
// written frame.
type Slot struct {
	cur atomic.Pointer[Frame]
	seq atomic.Uint64

	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

func NewSlot() *Slot {
	return &Slot{notify: make(chan struct{})}
}

// Store publishes jpeg as the latest frame and wakes waiters.
// The slot takes ownership of the byte slice.
func (s *Slot) Store(jpeg []byte, at time.Time) *Frame {
	f := &Frame{
		Seq:        s.seq.Add(1),
		CapturedAt: at,
		JPEG:       jpeg,
	}
	s.cur.Store(f)

	s.mu.Lock()
	if !s.closed {
		close(s.notify)
		s.notify = make(chan struct{})
	}
	s.mu.Unlock()

	return f
}

func (s *Slot) Latest() (*Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrUnavailable
	}

	f := s.cur.Load()
	if f == nil {
		return nil, ErrUnavailable
	}
	return f, nil
}

// Wait blocks until a frame with Seq > after is available and returns the
// latest one. It fails with ErrUnavailable once the slot is closed.
func (s *Slot) Wait(ctx context.Context, after uint64) (*Frame, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrUnavailable
		}
		if f := s.cur.Load(); f != nil && f.Seq > after {
			s.mu.Unlock()
			return f, nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// Close marks the source as exhausted. Pending and future waiters get
// ErrUnavailable.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.notify)
}
