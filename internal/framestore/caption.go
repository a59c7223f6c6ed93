package framestore

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"lookout/internal/frame"
	"lookout/internal/oracle"
)

const captionPrompt = `You describe camera snapshots so they can be found again by keyword search.
List the visible objects together with their colors, materials and where they are (on the table, next to the sofa, ...).
Return one line of lowercase words separated by spaces. No punctuation, no sentences, no mention of the image itself.`

// OracleCaptioner asks the vision oracle for a keyword caption.
type OracleCaptioner struct {
	oracle oracle.Oracle
}

func NewOracleCaptioner(o oracle.Oracle) *OracleCaptioner {
	return &OracleCaptioner{oracle: o}
}

func (c *OracleCaptioner) Caption(ctx context.Context, f *frame.Frame) (string, error) {
	out, err := c.oracle.Ask(ctx, "Describe what you see.", captionPrompt, f)
	if err != nil {
		return "", err
	}

	words := strings.FieldsFunc(strings.ToLower(out), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "", errors.New("empty caption")
	}
	return strings.Join(words, " "), nil
}
