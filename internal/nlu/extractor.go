package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"unicode"

	"lookout/internal/oracle"
)

const conditionPrompt = `
You analyze user requests to describe what to detect in an image.
You must return the stop condition for a loop that keeps looking at new images.

RULES:
1. Return ONLY the stop condition, nothing else.
2. The condition MUST be a present-tense statement that is either true or false of a single image.
3. Keep the subject of the request and every qualifier the user gave. Do not add new ones.

EXAMPLES:
"tell me when you see something blue" -> "there is a blue object in the image"
"let me know when a cat appears"      -> "a cat is in the image"
"find a cat"                          -> "a cat is in the image"
"tell me when you see a red car"      -> "a red car is in the image"
`

const keywordPrompt = `
You are a keyword extractor. The keywords are used to search a database of earlier camera snapshots.

RULES:
1. Return only the keywords as one line, separated by spaces.
2. No punctuation, no symbols, no explanations.
3. Keep only words useful for finding the snapshot: objects, colors, materials, places.

EXAMPLE:
"I haven't seen my keys in a while. They are blue and shiny" -> "blue shiny keys"
`

var ErrEmptyCondition = errors.New("empty condition")

type Extractor struct {
	oracle oracle.Oracle
}

func NewExtractor(o oracle.Oracle) *Extractor {
	return &Extractor{oracle: o}
}

// Condition rewrites a request about a future event ("tell me when you see a
// red car") as a declarative statement about one image ("a red car is in the
// image").
func (e *Extractor) Condition(ctx context.Context, utterance string) (Condition, error) {
	out, err := e.oracle.Ask(ctx, "User query: "+utterance, conditionPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("extract condition: %w", err)
	}

	cond := strings.TrimRight(cleanLine(out), ".")
	if cond == "" {
		return "", ErrEmptyCondition
	}

	log.Info("Stop condition", "condition", cond)
	return Condition(cond), nil
}

// Keywords pulls a punctuation-free bag of search words out of a recall
// query. If the model returns nothing usable the query's own words are used.
func (e *Extractor) Keywords(ctx context.Context, query string) (string, error) {
	out, err := e.oracle.Ask(ctx, "User input: "+query, keywordPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("extract keywords: %w", err)
	}

	kw := NormalizeKeywords(cleanLine(out))
	if kw == "" {
		kw = NormalizeKeywords(query)
	}

	log.Info("Keywords", "keywords", kw)
	return kw, nil
}

// NormalizeKeywords lowercases s and drops everything that is not a letter or
// digit, collapsing the rest into single-space separated words.
func NormalizeKeywords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}
