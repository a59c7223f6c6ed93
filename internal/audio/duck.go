package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"slices"
	"sync"
	"time"
)

const maxVolume = 150

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Mixer is the subset of a sound server used for ducking.
type Mixer interface {
	SinkInputs(ctx context.Context) ([]SinkInput, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker fades out every playback stream except our own while an answer is
// spoken and restores them afterwards.
type Ducker struct {
	mixer Mixer

	mu          sync.Mutex
	active      bool
	selfNames   []string    // application.name values left untouched
	originalVol map[int]int // sink input id -> volume before ducking
	minVolume   int
	step        time.Duration
}

func NewDucker(mixer Mixer, selfNames []string, minVolume int) *Ducker {
	minVolume = max(0, min(minVolume, maxVolume))

	return &Ducker{
		mixer:       mixer,
		selfNames:   slices.Clone(selfNames),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
		step:        10 * time.Millisecond,
	}
}

// DuckOthers fades foreign streams to current*factor, never below minVolume.
// A second call before UnduckOthers is a no-op.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		to := math.Round(float64(s.Volume) * factor)
		to = max(float64(d.minVolume), min(to, maxVolume))

		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: int(to)})
	}

	d.active = true
	log.Debug("Ducking streams", "count", len(targets))

	return d.fade(ctx, targets, fade)
}

// UnduckOthers fades ducked streams back. Streams that appeared after
// DuckOthers are left alone.
func (d *Ducker) UnduckOthers(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return fmt.Errorf("list sink inputs: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	d.originalVol = make(map[int]int)
	d.active = false

	return d.fade(ctx, targets, fade)
}

func (d *Ducker) isSelf(s SinkInput) bool {
	return slices.Contains(d.selfNames, s.AppName)
}

// fade walks every target from its start to its end volume in small steps.
func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	if duration <= 0 {
		for _, t := range targets {
			if err := d.mixer.SetVolume(ctx, t.id, t.to); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}
		return nil
	}

	steps := max(1, int(duration/d.step))
	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		frac := float64(i) / float64(steps)

		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.mixer.SetVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepDuration):
			}
		}
	}

	return nil
}
