package notify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCueMissingFile(t *testing.T) {
	c := NewCue(filepath.Join(t.TempDir(), "nope.mp3"))

	err := c.Play(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open cue")
}

func TestDesktopArgs(t *testing.T) {
	d := NewDesktop("lookout")

	assert.Equal(t,
		[]string{"--app-name", "lookout", "--expire-time", "5000", "lookout", "I see a cat."},
		d.args("lookout", "I see a cat."))
}

func TestDesktopMissingBinary(t *testing.T) {
	d := NewDesktop("lookout")
	d.Bin = filepath.Join(t.TempDir(), "notify-send")

	assert.Error(t, d.Speak(context.Background(), "hi"))
}
