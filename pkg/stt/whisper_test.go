package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookout/pkg/audioconv"
)

func TestNewTranscriberEmptyPath(t *testing.T) {
	_, err := NewTranscriber("", DefaultOptions())
	assert.Error(t, err)
}

func TestTranscribeWithoutModel(t *testing.T) {
	var tr Transcriber

	_, err := tr.Transcribe(context.Background(), []float32{0, 0.1})
	assert.EqualError(t, err, "nil model")
}

func TestTranscribeClipRejectsUnknownAudio(t *testing.T) {
	var tr Transcriber

	_, err := tr.TranscribeClip(context.Background(), []byte("not audio"), "text/plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, audioconv.ErrUnsupported)
}
