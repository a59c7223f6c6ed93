package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookout/internal/assist"
	"lookout/internal/config"
	"lookout/internal/frame"
	"lookout/internal/nlu"
)

// fakeOpenAI answers chat completions: the classifier gets a label, every
// other prompt gets the same description.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		answer := "I see a red mug on the desk."
		if bytes.Contains(body, []byte("LOOKOUT-NLU")) {
			answer = "immediate"
			if bytes.Contains(body, []byte("User query: do you remember")) {
				answer = "recall"
			}
		}

		resp, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": answer},
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recordingSpeaker struct {
	mu    sync.Mutex
	Texts []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Texts = append(s.Texts, text)
	return nil
}

func testConfig(t *testing.T, url string) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.BaseURL = url + "/"
	cfg.OracleTimeout = 2 * time.Second
	cfg.DB = ""
	cfg.FramesDir = filepath.Join(dir, "frames")
	cfg.Image = filepath.Join(dir, "latest.jpeg")
	cfg.FrameEvery = 2

	require.NoError(t, os.WriteFile(cfg.Image, []byte{0xff, 0xd8, 0x01, 0xff, 0xd9}, 0o644))
	return cfg
}

func TestImmediateFromFile(t *testing.T) {
	srv := fakeOpenAI(t)
	spk := &recordingSpeaker{}

	a, err := New(testConfig(t, srv.URL), FeedFile, spk)
	require.NoError(t, err)
	defer a.Close()

	r := a.Executor.Handle(context.Background(), "what is on my desk?")

	require.NoError(t, r.Err)
	assert.Equal(t, nlu.Immediate, r.Strategy)
	assert.Equal(t, "I see a red mug on the desk.", r.Text)
	assert.Equal(t, []string{r.Text}, spk.Texts)
}

func TestRecallAfterSampling(t *testing.T) {
	srv := fakeOpenAI(t)
	spk := &recordingSpeaker{}

	a, err := New(testConfig(t, srv.URL), FeedBus, spk)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()

	r := a.Executor.Handle(ctx, "do you remember where my mug is?")
	require.NoError(t, r.Err)
	assert.Equal(t, nlu.Recall, r.Strategy)
	assert.Equal(t, assist.ReplyNoMemory, r.Text, "nothing stored yet")

	// frames 0 and 2 are kept
	for i := range 3 {
		a.Sample(a.Slot.Store([]byte{0xff, 0xd8, byte(i), 0xff, 0xd9}, time.Now()))
	}
	a.Persister.Close()
	require.NoError(t, a.Persister.Run(ctx))
	assert.Equal(t, int64(2), a.Persister.Stats().Saved)

	r = a.Executor.Handle(ctx, "do you remember where my mug is?")
	require.NoError(t, r.Err)
	assert.Equal(t, nlu.Recall, r.Strategy)
	assert.Equal(t, "I see a red mug on the desk.", r.Text)
}

func TestBusFeedWithoutFrames(t *testing.T) {
	srv := fakeOpenAI(t)

	a, err := New(testConfig(t, srv.URL), FeedBus, &recordingSpeaker{})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Source.Latest()
	assert.ErrorIs(t, err, frame.ErrUnavailable)

	r := a.Executor.Handle(context.Background(), "what do you see?")
	assert.Equal(t, assist.ReplyNoFrame, r.Text)
}

func TestCameraFailureIsNotFatal(t *testing.T) {
	srv := fakeOpenAI(t)
	cfg := testConfig(t, srv.URL)
	cfg.Camera = "/dev/video0"
	spk := &recordingSpeaker{}

	a, err := New(cfg, FeedCamera, spk)
	require.NoError(t, err)
	defer a.Close()
	a.camera.Bin = filepath.Join(t.TempDir(), "no-such-ffmpeg")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Run(ctx))
	require.NoError(t, ctx.Err(), "Run must return on its own once capture fails")

	r := a.Executor.Handle(ctx, "what do you see?")
	assert.ErrorIs(t, r.Err, frame.ErrUnavailable)
	assert.Equal(t, nlu.Immediate, r.Strategy)
	assert.Equal(t, assist.ReplyNoFrame, r.Text)
	assert.Equal(t, []string{assist.ReplyNoFrame}, spk.Texts)
}

func TestFeedString(t *testing.T) {
	assert.Equal(t, "camera", FeedCamera.String())
	assert.Equal(t, "bus", FeedBus.String())
	assert.Equal(t, "file", FeedFile.String())
}
