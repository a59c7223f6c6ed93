package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookout/internal/frame"
)

type bridge struct {
	srv   *httptest.Server
	conns atomic.Int32
	in    chan Message
	// script runs for every accepted connection after the hello was read
	script func(n int32, conn *ws.Conn)
}

func newBridge(t *testing.T, script func(n int32, conn *ws.Conn)) *bridge {
	t.Helper()
	b := &bridge{in: make(chan Message, 16), script: script}
	up := ws.Upgrader{}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := b.conns.Add(1)

		go func() {
			for {
				_, payload, err := conn.ReadMessage()
				if err != nil {
					return
				}
				m, err := Parse(payload)
				if err == nil {
					b.in <- m
				}
			}
		}()

		b.script(n, conn)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *bridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func send(t *testing.T, conn *ws.Conn, m Message) {
	t.Helper()
	payload, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, payload))
}

func (b *bridge) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-b.in:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from client")
		return Message{}
	}
}

func TestSessionOverBus(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 1, 2, 3, 0xff, 0xd9}
	hold := make(chan struct{})

	b := newBridge(t, func(_ int32, conn *ws.Conn) {
		send(t, conn, Message{From: "bridge", Kind: KindJoin, Content: "alice"})
		send(t, conn, Message{From: "bridge", To: "lookout", Kind: KindFrame, Data: jpeg, Mime: "image/jpeg"})
		send(t, conn, Message{From: "bridge", Kind: KindTranscript, Content: "what is th"})
		send(t, conn, Message{From: "bridge", To: "someone-else", Kind: KindTranscript, Content: "not for us", Final: true})
		send(t, conn, Message{From: "bridge", Kind: KindTranscript, Content: " what is this? ", Final: true})
		<-hold
	})
	defer close(hold)

	cfg := DefaultConfig()
	cfg.URL = b.url()
	client := NewClient(cfg)
	spk := &Speaker{Client: client, To: "bridge"}

	slot := frame.NewSlot()
	var sampled atomic.Int32
	sess := NewSession(slot, 4)
	sess.OnFrame = func(*frame.Frame) { sampled.Add(1) }
	sess.Greet = func(ctx context.Context) {
		assert.NoError(t, spk.Speak(ctx, "Hi! Ask me about anything!"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, sess.Handle) }()

	hello := b.next(t)
	assert.Equal(t, KindHello, hello.Kind)
	assert.Equal(t, "lookout", hello.From)

	greeting := b.next(t)
	assert.Equal(t, KindReply, greeting.Kind)
	assert.Equal(t, "bridge", greeting.To)
	assert.Equal(t, "Hi! Ask me about anything!", greeting.Content)

	select {
	case u := <-sess.Utterances():
		assert.Equal(t, "what is this?", u)
	case <-time.After(2 * time.Second):
		t.Fatal("no utterance")
	}

	f, err := slot.Latest()
	require.NoError(t, err)
	assert.Equal(t, jpeg, f.JPEG)
	assert.Equal(t, int32(1), sampled.Load())

	require.NoError(t, spk.Speak(ctx, "I see a mug."))
	reply := b.next(t)
	assert.Equal(t, "I see a mug.", reply.Content)
	assert.True(t, reply.Final)

	cancel()
	require.NoError(t, <-done)
	sess.Wait()
}

func TestClientReconnects(t *testing.T) {
	b := newBridge(t, func(n int32, conn *ws.Conn) {
		if n == 1 {
			conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseGoingAway, "restart"))
			return
		}
		time.Sleep(time.Second)
	})

	cfg := DefaultConfig()
	cfg.URL = b.url()
	cfg.Reconnect = 10 * time.Millisecond
	client := NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, func(context.Context, Message) {}) }()

	assert.Eventually(t, func() bool { return b.conns.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSendWithoutConnection(t *testing.T) {
	c := NewClient(DefaultConfig())
	assert.ErrorIs(t, c.Send(Message{Kind: KindReply}), ErrNotConnected)
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{"from":"bridge","kind":"audio","data":"AQID","mime":"audio/ogg"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, m.Data)
	assert.True(t, m.For("lookout"))

	_, err = Parse([]byte(`{"from":"bridge"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}
