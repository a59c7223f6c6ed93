package assist

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"lookout/internal/frame"
	"lookout/internal/framestore"
	"lookout/internal/nlu"
	"lookout/internal/oracle"
	"lookout/internal/tts"
)

type Reply struct {
	Strategy nlu.Strategy
	Text     string
	Err      error
}

// Executor runs one turn at a time: classify, dispatch to a handler, speak.
type Executor struct {
	classifier Classifier
	handlers   *Handlers
	speaker    tts.Speaker

	mu sync.Mutex
}

func NewExecutor(c Classifier, h *Handlers, s tts.Speaker) *Executor {
	if s == nil {
		s = tts.Log{}
	}
	return &Executor{classifier: c, handlers: h, speaker: s}
}

// Handle answers an utterance and speaks the answer. While a turn is running
// (a poll can take minutes) later utterances wait for it to finish.
func (e *Executor) Handle(ctx context.Context, utterance string) Reply {
	u := strings.TrimSpace(utterance)
	if u == "" {
		return Reply{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	reply := e.answer(ctx, u)

	if errors.Is(reply.Err, context.Canceled) {
		log.Info("Turn canceled", "utterance", u, "strategy", reply.Strategy)
		return reply
	}
	if reply.Err != nil {
		log.Error("Turn failed", "utterance", u, "strategy", reply.Strategy, "err", reply.Err)
	}

	if err := e.speaker.Speak(ctx, reply.Text); err != nil {
		log.Error("Failed to speak", "err", err)
	}

	log.Info("Turn done", "strategy", reply.Strategy, "took", time.Since(start))
	return reply
}

func (e *Executor) answer(ctx context.Context, u string) Reply {
	strategy, err := e.classifier.Classify(ctx, u)
	if err != nil {
		return Reply{Text: Apology(err), Err: err}
	}
	log.Info("Strategy", "utterance", u, "strategy", strategy)

	var text string
	switch strategy {
	case nlu.Recall:
		text, err = e.handlers.Recall(ctx, u)
	case nlu.Poll:
		text, err = e.handlers.Poll(ctx, u)
	default:
		strategy = nlu.Immediate
		text, err = e.handlers.Immediate(ctx, u)
	}

	if err != nil {
		return Reply{Strategy: strategy, Text: Apology(err), Err: err}
	}
	return Reply{Strategy: strategy, Text: text}
}

// Serve handles utterances from in one by one until it is closed or ctx is
// done.
func (e *Executor) Serve(ctx context.Context, in <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-in:
			if !ok {
				return nil
			}
			e.Handle(ctx, u)
		}
	}
}

// Speak says text outside of a turn, e.g. a greeting.
func (e *Executor) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.speaker.Speak(ctx, text); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// Apology picks the spoken reply for a failed turn.
func Apology(err error) string {
	switch {
	case errors.Is(err, frame.ErrUnavailable):
		return ReplyNoFrame
	case errors.Is(err, oracle.ErrUnavailable):
		return ReplyNoOracle
	case errors.Is(err, framestore.ErrNoMatch):
		return ReplyNoMemory
	default:
		return ReplyFailed
	}
}
