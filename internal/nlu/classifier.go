package nlu

import (
	"context"
	"fmt"
	log "log/slog"

	"lookout/internal/oracle"
)

const classifierPrompt = `
You are LOOKOUT-NLU, the tool selector of a seeing voice assistant.
Your ONLY job is to pick the strategy that answers the user's request.

STRATEGIES:
- "immediate": the request is about what is visible right now.
  Examples: "What do you see in front of you?", "Solve this equation",
  "What is the color of the object in front of you?"
- "recall": the request is about something seen earlier that is not visible now.
  Examples: "I can't find my keys, do you remember where I left them?",
  "What color was the triangle from the image I just showed you?"
- "poll": the user wants you to keep watching and tell them when something happens.
  Examples: "Tell me when you see a red car", "Let me know if you see a blue pen",
  "Tell me when you see an animal that may be living in the water"

RULES:
1. Return "poll" whenever the user has to wait for you to find something.
2. Output ONLY one word: immediate, recall or poll.
3. Do NOT answer the question. Do NOT add explanations.
`

type Classifier struct {
	oracle oracle.Oracle
}

func NewClassifier(o oracle.Oracle) *Classifier {
	return &Classifier{oracle: o}
}

// Classify picks exactly one Strategy for the utterance. An answer outside
// the known labels falls back to Immediate; only oracle failures are errors.
func (c *Classifier) Classify(ctx context.Context, utterance string) (Strategy, error) {
	label, err := c.oracle.Ask(ctx, "User query: "+utterance, classifierPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	s, ok := ParseStrategy(cleanLine(label))
	if !ok {
		log.Warn("Unrecognized strategy label, using immediate", "label", label)
		return Immediate, nil
	}

	log.Debug("Classified", "utterance", utterance, "strategy", s)
	return s, nil
}
