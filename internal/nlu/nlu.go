package nlu

import (
	"strings"
	"unicode"
)

// Strategy is the visual-query mode chosen for one utterance.
type Strategy string

const (
	// Immediate answers from the frame in front of the camera right now.
	Immediate Strategy = "immediate"
	// Recall answers from a frame captured earlier.
	Recall Strategy = "recall"
	// Poll keeps watching until a condition holds.
	Poll Strategy = "poll"
)

// Condition is a declarative statement that is either true or false of a
// single image, e.g. "a red car is in the image".
type Condition string

var labels = map[string]Strategy{
	"immediate":             Immediate,
	"use_current_image":     Immediate,
	"current":               Immediate,
	"recall":                Recall,
	"recall_previous_image": Recall,
	"poll":                  Poll,
	"use_loop":              Poll,
	"loop":                  Poll,
}

// ParseStrategy maps a model label onto a Strategy. Case, surrounding quotes,
// punctuation and whitespace are ignored.
func ParseStrategy(label string) (Strategy, bool) {
	clean := strings.ToLower(strings.TrimFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	}))
	s, ok := labels[clean]
	return s, ok
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(s, "\"'`"))
}
