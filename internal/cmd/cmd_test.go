package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookout/internal/ipc"
)

func startDaemon(t *testing.T, h ipc.Handler) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "lkctl")
	require.NoError(t, err)
	path := filepath.Join(dir, "d.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ipc.Serve(ctx, path, h)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		os.RemoveAll(dir)
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAskJoinsWords(t *testing.T) {
	var got ipc.ControlMessage
	path := startDaemon(t, func(_ context.Context, msg ipc.ControlMessage) ipc.Response {
		got = msg
		return ipc.Response{OK: true, Strategy: "poll", Text: "Yes, there is a red car."}
	})

	out, err := run(t, "ask", "--socket", path, "tell", "me", "when", "you", "see", "a", "red", "car")
	require.NoError(t, err)

	assert.Equal(t, ipc.ControlMessage{Cmd: ipc.CmdAsk, Text: "tell me when you see a red car"}, got)
	assert.Contains(t, out, "mode:   poll")
	assert.Contains(t, out, "answer: Yes, there is a red car.")
}

func TestTriggerReportsDaemonError(t *testing.T) {
	path := startDaemon(t, func(_ context.Context, msg ipc.ControlMessage) ipc.Response {
		assert.Equal(t, ipc.CmdTrigger, msg.Cmd)
		return ipc.Response{Error: "no speech recorded"}
	})

	_, err := run(t, "trigger", "--socket", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no speech recorded")
}

func TestDaemonNotRunning(t *testing.T) {
	_, err := run(t, "trigger", "--socket", filepath.Join(t.TempDir(), "none.sock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}
