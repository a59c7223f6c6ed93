package watch

import (
	"context"
	"time"

	"lookout/internal/frame"
)

// Pacer decides when the loop may look at the next frame. It bounds how
// often the oracle is called independently of the camera frame rate.
type Pacer interface {
	Next(ctx context.Context) (*frame.Frame, error)
	Stop()
}

// Waiter is implemented by frame.Slot.
type Waiter interface {
	Wait(ctx context.Context, after uint64) (*frame.Frame, error)
}

// FramePacer yields every Nth captured frame. The first call returns the
// current frame right away.
type FramePacer struct {
	src     Waiter
	every   uint64
	last    uint64
	started bool
}

func NewFramePacer(src Waiter, every int) *FramePacer {
	if every <= 0 {
		every = 1
	}
	return &FramePacer{src: src, every: uint64(every)}
}

func (p *FramePacer) Next(ctx context.Context) (*frame.Frame, error) {
	var after uint64
	if p.started {
		after = p.last + p.every - 1
	}

	f, err := p.src.Wait(ctx, after)
	if err != nil {
		return nil, err
	}

	p.started = true
	p.last = f.Seq
	return f, nil
}

func (p *FramePacer) Stop() {}

// IntervalPacer reads the latest frame once per interval. Used where frames
// arrive on demand rather than from a continuously running capture.
type IntervalPacer struct {
	src      frame.Source
	interval time.Duration
	timer    *time.Timer
	started  bool
}

func NewIntervalPacer(src frame.Source, interval time.Duration) *IntervalPacer {
	return &IntervalPacer{src: src, interval: interval}
}

func (p *IntervalPacer) Next(ctx context.Context) (*frame.Frame, error) {
	if p.started && p.interval > 0 {
		if p.timer == nil {
			p.timer = time.NewTimer(p.interval)
		} else {
			p.timer.Reset(p.interval)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.timer.C:
		}
	}
	p.started = true

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.src.Latest()
}

func (p *IntervalPacer) Stop() {
	if p.timer != nil {
		p.timer.Stop()
	}
}
