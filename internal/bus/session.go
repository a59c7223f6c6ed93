package bus

import (
	"context"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"lookout/internal/frame"
)

// Speaker sends answers to the call bridge, which speaks them.
type Speaker struct {
	Client *Client
	To     string
}

func (s *Speaker) Speak(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	to := s.To
	if to == "" {
		to = Broadcast
	}
	return s.Client.Send(Message{To: to, Kind: KindReply, Content: text, Final: true})
}

type FrameSink interface {
	Store(jpeg []byte, at time.Time) *frame.Frame
}

type Transcriber interface {
	TranscribeClip(ctx context.Context, data []byte, mime string) (string, error)
}

// Session routes call traffic: frames go to the sink right away, speech is
// queued as utterances for a single worker. The reader never waits on a turn.
type Session struct {
	Frames      FrameSink
	Transcriber Transcriber        // optional, audio clips are ignored without it
	OnFrame     func(*frame.Frame) // optional, e.g. sampling for persistence
	Greet       func(ctx context.Context)

	utterances chan string
	greetOnce  sync.Once
	wg         sync.WaitGroup
}

func NewSession(frames FrameSink, queue int) *Session {
	if queue <= 0 {
		queue = 4
	}
	return &Session{Frames: frames, utterances: make(chan string, queue)}
}

func (s *Session) Utterances() <-chan string {
	return s.utterances
}

// Handle is a HandlerFunc.
func (s *Session) Handle(ctx context.Context, m Message) {
	switch m.Kind {
	case KindFrame:
		if len(m.Data) == 0 {
			return
		}
		f := s.Frames.Store(m.Data, time.Now())
		if s.OnFrame != nil {
			s.OnFrame(f)
		}

	case KindTranscript:
		if !m.Final {
			return
		}
		s.push(m.Content)

	case KindAudio:
		if s.Transcriber == nil || len(m.Data) == 0 {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			text, err := s.Transcriber.TranscribeClip(ctx, m.Data, m.Mime)
			if err != nil {
				log.Error("Failed to transcribe clip", "from", m.From, "err", err)
				return
			}
			log.Info("Transcribed", "from", m.From, "text", text)
			s.push(text)
		}()

	case KindJoin:
		if s.Greet == nil {
			return
		}
		s.greetOnce.Do(func() {
			log.Info("Participant joined", "who", m.Content)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Greet(ctx)
			}()
		})

	default:
		log.Debug("Ignoring bus message", "kind", m.Kind)
	}
}

func (s *Session) push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	select {
	case s.utterances <- text:
	default:
		log.Warn("Busy, dropping utterance", "text", text)
	}
}

// Wait blocks until background transcriptions and greetings are done.
func (s *Session) Wait() {
	s.wg.Wait()
}
