package watch

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"lookout/internal/frame"
	"lookout/internal/nlu"
	"lookout/internal/oracle"
)

type State int

const (
	StateInit State = iota
	StateSampling
	StateEvaluating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSampling:
		return "sampling"
	case StateEvaluating:
		return "evaluating"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// NotObserved is the reply when the loop ends without the condition being met.
const NotObserved = "I kept watching, but I did not see that happen."

type Evaluator interface {
	Evaluate(ctx context.Context, condition string, img *frame.Frame) (oracle.Verdict, error)
}

type Config struct {
	// MaxWait bounds the whole loop; zero means no bound.
	MaxWait time.Duration
	// MaxFailures consecutive failed evaluations abort the loop.
	MaxFailures int
}

func DefaultConfig() Config {
	return Config{
		MaxWait:     10 * time.Minute,
		MaxFailures: 3,
	}
}

type Result struct {
	Met         bool
	Text        string
	Evaluations int
	Elapsed     time.Duration
}

// Watcher runs the condition polling loop:
//
//	INIT -> SAMPLING -> EVALUATING -> SAMPLING ... -> DONE
//
// It stops on the first met verdict. Running out of frames or out of time
// ends the loop with an unmet Result and no error.
type Watcher struct {
	judge    Evaluator
	newPacer func() Pacer
	cfg      Config
}

func NewWatcher(judge Evaluator, newPacer func() Pacer, cfg Config) *Watcher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	return &Watcher{judge: judge, newPacer: newPacer, cfg: cfg}
}

func (w *Watcher) Run(ctx context.Context, cond nlu.Condition) (Result, error) {
	outer := ctx
	if w.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.MaxWait)
		defer cancel()
	}

	var (
		res      Result
		pacer    Pacer
		current  *frame.Frame
		failures int
		start    = time.Now()
		state    = StateInit
	)

	enter := func(next State) {
		log.Debug("Watch transition", "from", state, "to", next, "evaluations", res.Evaluations)
		state = next
	}

	for {
		switch state {
		case StateInit:
			pacer = w.newPacer()
			defer pacer.Stop()
			log.Info("Watching", "condition", cond)
			enter(StateSampling)

		case StateSampling:
			f, err := pacer.Next(ctx)
			switch {
			case err == nil:
				current = f
				enter(StateEvaluating)
			case outer.Err() != nil:
				return res, outer.Err()
			case errors.Is(err, context.DeadlineExceeded):
				log.Warn("Stopped watching, time is up", "condition", cond, "max_wait", w.cfg.MaxWait)
				enter(StateDone)
			case errors.Is(err, frame.ErrUnavailable):
				if res.Evaluations == 0 {
					return res, fmt.Errorf("watch %q: %w", string(cond), err)
				}
				log.Warn("Stopped watching, no more frames", "condition", cond, "err", err)
				enter(StateDone)
			default:
				return res, fmt.Errorf("next frame: %w", err)
			}

		case StateEvaluating:
			v, err := w.judge.Evaluate(ctx, string(cond), current)
			res.Evaluations++
			current = nil

			if err != nil {
				if outer.Err() != nil {
					return res, outer.Err()
				}
				if ctx.Err() != nil {
					log.Warn("Stopped watching, time is up", "condition", cond, "max_wait", w.cfg.MaxWait)
					enter(StateDone)
					continue
				}

				failures++
				log.Warn("Evaluation failed", "condition", cond, "failures", failures, "err", err)
				if failures >= w.cfg.MaxFailures {
					return res, fmt.Errorf("evaluate condition: %w", err)
				}
				enter(StateSampling)
				continue
			}

			failures = 0
			if v.Met {
				res.Met = true
				res.Text = v.Text
				enter(StateDone)
				continue
			}
			enter(StateSampling)

		case StateDone:
			res.Elapsed = time.Since(start)
			if !res.Met {
				res.Text = NotObserved
			}
			log.Info("Watch finished", "condition", cond, "met", res.Met, "evaluations", res.Evaluations, "elapsed", res.Elapsed)
			return res, nil
		}
	}
}
