package oracle

import (
	"context"
	"errors"

	"lookout/internal/frame"
)

// ErrUnavailable wraps every transport or API failure once the retry budget
// is spent.
var ErrUnavailable = errors.New("oracle unavailable")

// Oracle answers a prompt, optionally grounded in an image. Text-only calls
// pass a nil frame.
type Oracle interface {
	Ask(ctx context.Context, prompt, system string, img *frame.Frame) (string, error)
}
