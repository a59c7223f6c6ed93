package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

var ErrNoSpeech = errors.New("no speech recorded")

type RecorderConfig struct {
	SampleRate int           // Hz, whisper wants 16000
	FrameSize  int           // samples per read
	Threshold  float64       // RMS above which a frame counts as speech
	Silence    time.Duration // trailing silence that ends an utterance
	MaxLength  time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate: 16000,
		FrameSize:  320, // 20ms
		Threshold:  0.015,
		Silence:    600 * time.Millisecond,
		MaxLength:  10 * time.Second,
	}
}

// Recorder captures one spoken question from the default microphone.
type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordAuto records until the speaker goes quiet, MaxLength passes or ctx is
// done. Leading silence is discarded.
func (r *Recorder) RecordAuto(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	ep := newEndpointer(r.cfg)
	for !ep.done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input stream: %w", err)
		}
		ep.push(buf)
	}

	if len(ep.out) == 0 {
		return nil, ErrNoSpeech
	}
	return ep.out, nil
}

// endpointer decides where an utterance starts and ends from frame energy.
type endpointer struct {
	threshold     float64
	silenceFrames int
	maxFrames     int

	frames   int
	speaking bool
	quiet    int
	out      []float32
}

func newEndpointer(cfg RecorderConfig) *endpointer {
	frameDur := time.Duration(cfg.FrameSize) * time.Second / time.Duration(cfg.SampleRate)

	return &endpointer{
		threshold:     cfg.Threshold,
		silenceFrames: max(1, int(cfg.Silence/frameDur)),
		maxFrames:     max(1, int(cfg.MaxLength/frameDur)),
		out:           make([]float32, 0, cfg.SampleRate*3),
	}
}

func (e *endpointer) push(frame []float32) {
	e.frames++

	if frameRMS(frame) > e.threshold {
		e.speaking = true
		e.quiet = 0
		e.out = append(e.out, frame...)
		return
	}

	if e.speaking {
		e.quiet++
		e.out = append(e.out, frame...)
	}
}

func (e *endpointer) done() bool {
	return e.frames >= e.maxFrames || (e.speaking && e.quiet >= e.silenceFrames)
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
