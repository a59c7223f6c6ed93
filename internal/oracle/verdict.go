package oracle

import (
	"context"
	"strings"
	"unicode"

	"lookout/internal/frame"
)

// AffirmativeMarker is the word that marks a met condition.
const AffirmativeMarker = "Yes"

const judgeSystemPrompt = `You are analyzing an image. You must answer if a condition has been met or not within the supplied image.
Based on the objects or characteristics in the image, respond with "Yes" or "No". If you respond with "Yes", you must
also describe what the condition is that has been met and where it is in the image. Otherwise, only respond with "No" and
nothing else.

EXAMPLE USER INPUT: "there is a blue object in the image"
If you see a blue object in the image, you should respond with something like "Yes, there is a blue object in the image. It appears to be a blue water bottle on a desk and appears next to a notebook."
If you do not see a blue object in the image, you should respond with "No".

EXAMPLE USER INPUT: "there is a cat in the image"
If you see a cat in the image, you should respond with something like "Yes, there is a cat in the image. It is sitting on a chair."
If you do not see a cat in the image, you should respond with "No".

REMEMBER, if the condition is not met only respond with "No." If the condition is met, respond with "Yes" and briefly describe the condition in two sentences.`

// Verdict is the structured outcome of checking a condition against one
// frame. Text carries the oracle's full answer and is only meaningful when
// Met is true.
type Verdict struct {
	Met  bool
	Text string
}

// ParseVerdict applies the marker rule: the answer is affirmative when the
// exact word "Yes" appears anywhere in it. "No", "yes" and "Yesterday" are
// all negative.
func ParseVerdict(answer string) Verdict {
	text := strings.TrimSpace(answer)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if w == AffirmativeMarker {
			return Verdict{Met: true, Text: text}
		}
	}
	return Verdict{Text: text}
}

// Judge turns free-text oracle answers into Verdicts.
type Judge struct {
	oracle Oracle
}

func NewJudge(o Oracle) *Judge {
	return &Judge{oracle: o}
}

func (j *Judge) Evaluate(ctx context.Context, condition string, img *frame.Frame) (Verdict, error) {
	answer, err := j.oracle.Ask(ctx, "Condition: "+condition, judgeSystemPrompt, img)
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(answer), nil
}
