package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are short on some systems, keep it out of deep temp dirs
	dir, err := os.MkdirTemp("", "lk")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, path string, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, path, h) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestSendAsk(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, func(_ context.Context, msg ControlMessage) Response {
		if msg.Cmd != CmdAsk {
			return Response{Error: "unknown command"}
		}
		return Response{OK: true, Strategy: "immediate", Text: "I see " + msg.Text}
	})

	resp, err := Send(context.Background(), path, ControlMessage{Cmd: CmdAsk, Text: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, Response{OK: true, Strategy: "immediate", Text: "I see a cat"}, resp)

	resp, err = Send(context.Background(), path, ControlMessage{Cmd: "dance"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown command", resp.Error)
}

func TestSendNoDaemon(t *testing.T) {
	_, err := Send(context.Background(), socketPath(t), ControlMessage{Cmd: CmdTrigger})
	assert.Error(t, err)
}

func TestSendCanceledWhileWaiting(t *testing.T) {
	path := socketPath(t)
	release := make(chan struct{})
	startServer(t, path, func(ctx context.Context, _ ControlMessage) Response {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Response{OK: true}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Send(ctx, path, ControlMessage{Cmd: CmdAsk, Text: "tell me when"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
