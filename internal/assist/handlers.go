package assist

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"lookout/internal/frame"
	"lookout/internal/framestore"
	"lookout/internal/nlu"
	"lookout/internal/oracle"
	"lookout/internal/watch"
)

type Classifier interface {
	Classify(ctx context.Context, utterance string) (nlu.Strategy, error)
}

type Extractor interface {
	Condition(ctx context.Context, utterance string) (nlu.Condition, error)
	Keywords(ctx context.Context, query string) (string, error)
}

// Recaller finds and loads previously stored frames.
type Recaller interface {
	Search(ctx context.Context, keywords string) (framestore.Ref, error)
	Load(ctx context.Context, ref framestore.Ref) (*frame.Frame, error)
}

type Watcher interface {
	Run(ctx context.Context, cond nlu.Condition) (watch.Result, error)
}

// Handlers answer one utterance each, one handler per strategy.
type Handlers struct {
	Oracle    oracle.Oracle
	Source    frame.Source
	Extractor Extractor
	Recaller  Recaller
	Watcher   Watcher
}

// Immediate answers from the latest frame. Failures are returned as is.
func (h *Handlers) Immediate(ctx context.Context, utterance string) (string, error) {
	f, err := h.Source.Latest()
	if err != nil {
		return "", err
	}

	answer, err := h.Oracle.Ask(ctx, "User query: "+utterance, immediatePrompt, f)
	if err != nil {
		return "", fmt.Errorf("answer immediate: %w", err)
	}
	return answer, nil
}

// Recall answers from the stored frame that best matches the query. Having
// nothing to remember is an answer, not an error.
func (h *Handlers) Recall(ctx context.Context, query string) (string, error) {
	if h.Recaller == nil {
		return ReplyNoMemory, nil
	}

	keywords, err := h.Extractor.Keywords(ctx, query)
	if err != nil {
		return "", err
	}

	ref, err := h.Recaller.Search(ctx, keywords)
	if errors.Is(err, framestore.ErrNoMatch) {
		log.Info("Nothing remembered", "keywords", keywords)
		return ReplyNoMemory, nil
	}
	if err != nil {
		return "", fmt.Errorf("search frames: %w", err)
	}

	f, err := h.Recaller.Load(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("load frame %s: %w", ref.ID, err)
	}

	answer, err := h.Oracle.Ask(ctx, "User query: "+query, recallPrompt, f)
	if err != nil {
		return "", fmt.Errorf("answer recall: %w", err)
	}
	return answer, nil
}

// Poll extracts the stop condition once and watches until it holds.
func (h *Handlers) Poll(ctx context.Context, utterance string) (string, error) {
	cond, err := h.Extractor.Condition(ctx, utterance)
	if err != nil {
		return "", err
	}

	res, err := h.Watcher.Run(ctx, cond)
	if err != nil {
		return "", err
	}

	log.Info("Watch finished", "met", res.Met, "evaluations", res.Evaluations, "elapsed", res.Elapsed)
	return res.Text, nil
}
