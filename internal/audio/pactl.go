package audio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type SinkInput struct {
	ID      int
	Volume  int
	AppName string
}

// Pactl drives PulseAudio / PipeWire through the pactl binary.
type Pactl struct {
	Bin string
}

func NewPactl() *Pactl {
	return &Pactl{Bin: "pactl"}
}

func (p *Pactl) SinkInputs(ctx context.Context) ([]SinkInput, error) {
	out, err := exec.CommandContext(ctx, p.Bin, "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (p *Pactl) SetVolume(ctx context.Context, id, percent int) error {
	percent = max(0, min(percent, maxVolume))
	arg := strconv.Itoa(percent) + "%"

	if err := exec.CommandContext(ctx, p.Bin, "set-sink-input-volume", strconv.Itoa(id), arg).Run(); err != nil {
		return fmt.Errorf("pactl set-sink-input-volume: %w", err)
	}
	return nil
}

// parseSinkInputs reads the output of `pactl list sink-inputs`. Only the
// first Volume line (front-left) and application.name are used.
func parseSinkInputs(text string) []SinkInput {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []SinkInput
	for _, block := range parts[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		s := SinkInput{ID: id}
		volumeSeen := false
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && !volumeSeen {
				if m := percentRe.FindStringSubmatch(line); len(m) == 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
						volumeSeen = true
					}
				}
			}

			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if !volumeSeen && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}
