package tts

import (
	"context"
	"errors"
	log "log/slog"
	"time"
)

// Speaker renders an answer as audio (or hands it to something that does).
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Ducker lowers other audio while we talk. Implemented by audio.Ducker.
type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, fade time.Duration) error
	UnduckOthers(ctx context.Context, fade time.Duration) error
}

// Ducked wraps a Speaker so that other playback is quieted for the duration
// of each answer.
type Ducked struct {
	Speaker Speaker
	Ducker  Ducker
	Factor  float64
	Fade    time.Duration
}

func (d *Ducked) Speak(ctx context.Context, text string) error {
	if err := d.Ducker.DuckOthers(ctx, d.Factor, d.Fade); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
	defer func() {
		// restore even if ctx is already canceled
		if err := d.Ducker.UnduckOthers(context.WithoutCancel(ctx), d.Fade); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}()

	return d.Speaker.Speak(ctx, text)
}

// Tee speaks through every speaker and joins their errors.
type Tee []Speaker

func (t Tee) Speak(ctx context.Context, text string) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Speak(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log only prints answers; used when audio output is disabled.
type Log struct{}

func (Log) Speak(_ context.Context, text string) error {
	log.Info("Answer", "text", text)
	return nil
}
