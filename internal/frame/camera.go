package frame

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxJPEGSize = 8 << 20

// Camera continuously captures MJPEG frames from a V4L2 device through an
// ffmpeg pipe and publishes every frame to a Slot.
type Camera struct {
	Bin    string // capture binary, ffmpeg when empty
	Device string // e.g. /dev/video0
	Width  int
	Height int
	FPS    int

	// Every Nth frame is handed to OnSample (frame counter starts at 0, so the
	// very first frame is sampled too).
	Every    int
	OnSample func(f *Frame, counter int)
}

func (c *Camera) args() []string {
	args := []string{"-loglevel", "error", "-f", "v4l2"}
	if c.FPS > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.FPS))
	}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	return append(args, "-i", c.Device, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")
}

// Run captures until ctx is done or the device stops producing frames.
// The slot is closed on return, which is how pollers learn the camera is gone.
func (c *Camera) Run(ctx context.Context, slot *Slot) error {
	defer slot.Close()

	bin := c.Bin
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, c.args()...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	log.Info("Camera capture started", "device", c.Device)

	n, err := c.pump(out, slot)
	waitErr := cmd.Wait()

	log.Info("Camera capture stopped", "device", c.Device, "frames", n)

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read frames: %w", err)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	return nil
}

func (c *Camera) pump(r io.Reader, slot *Slot) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256<<10), maxJPEGSize)
	sc.Split(SplitJPEG)

	every := c.Every
	if every <= 0 {
		every = 1
	}

	counter := 0
	for sc.Scan() {
		// Scanner reuses its buffer; the slot needs its own copy.
		f := slot.Store(bytes.Clone(sc.Bytes()), time.Now())

		if c.OnSample != nil && counter%every == 0 {
			c.OnSample(f, counter)
		}
		counter++
	}
	return counter, sc.Err()
}
