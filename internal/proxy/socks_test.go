package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("", 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, c.Transport)
	assert.Equal(t, 5*time.Second, c.Timeout)

	c, err = NewClient("127.0.0.1:1080", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, c.Transport)
	assert.Equal(t, time.Minute, c.Timeout)
}
