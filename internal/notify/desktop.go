package notify

import (
	"context"
	"fmt"
	"os/exec"
)

// Desktop pops a notification through notify-send, mirroring what was said.
type Desktop struct {
	App string
	Bin string
}

func NewDesktop(app string) *Desktop {
	return &Desktop{App: app, Bin: "notify-send"}
}

func (d *Desktop) args(title, body string) []string {
	return []string{"--app-name", d.App, "--expire-time", "5000", title, body}
}

func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	if err := exec.CommandContext(ctx, d.Bin, d.args(title, body)...).Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

// Speak lets a Desktop sit in a tts.Tee next to the real voice.
func (d *Desktop) Speak(ctx context.Context, text string) error {
	return d.Notify(ctx, d.App, text)
}
