package framestore

import (
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lookout/internal/frame"
)

type Saver interface {
	Save(ctx context.Context, f *frame.Frame, tag string) (Ref, error)
}

type Stats struct {
	Saved   int64
	Failed  int64
	Dropped int64
}

type job struct {
	f   *frame.Frame
	tag string
}

// Persister saves frames in the background through a bounded queue and a
// fixed number of workers. Enqueue never blocks the capture path; when the
// queue is full the frame is dropped and counted.
type Persister struct {
	saver   Saver
	workers int

	mu     sync.Mutex
	queue  chan job
	closed bool

	saved   atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewPersister(saver Saver, size, workers int) *Persister {
	if size <= 0 {
		size = 8
	}
	if workers <= 0 {
		workers = 1
	}
	return &Persister{
		saver:   saver,
		workers: workers,
		queue:   make(chan job, size),
	}
}

// Enqueue schedules f for saving and reports whether it was accepted.
func (p *Persister) Enqueue(f *frame.Frame, tag string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.queue <- job{f: f, tag: tag}:
		return true
	default:
		n := p.dropped.Add(1)
		log.Warn("Persist queue full, dropping frame", "tag", tag, "dropped", n)
		return false
	}
}

// Run processes the queue until ctx is done or Close was called and the
// queue is drained.
func (p *Persister) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Persister) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			if _, err := p.saver.Save(ctx, j.f, j.tag); err != nil {
				n := p.failed.Add(1)
				log.Error("Failed to persist frame", "tag", j.tag, "failed", n, "err", err)
				continue
			}
			p.saved.Add(1)
		}
	}
}

// Close stops accepting frames. Workers finish what is already queued.
func (p *Persister) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

func (p *Persister) Stats() Stats {
	return Stats{
		Saved:   p.saved.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
	}
}
