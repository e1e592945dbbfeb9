package odinerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	err := New("arena.Open", "receiver", CodeInvalidBuffer, "bad buffer index")
	assert.True(t, Is(err, CodeInvalidBuffer))
	assert.False(t, Is(err, CodeFatal))
	assert.False(t, Is(errors.New("plain error"), CodeInvalidBuffer))
}

func TestWrapPreservesInnerCode(t *testing.T) {
	inner := NewFrameError("decoder.ReadOne", "decoder", 7, CodeDecoderError, "short packet")
	wrapped := Wrap("receiver.Run", "receiver", inner)

	require.NotNil(t, wrapped)
	assert.Equal(t, CodeDecoderError, wrapped.Code)
	assert.Equal(t, int64(7), wrapped.FrameNumber)
	assert.Equal(t, "receiver.Run", wrapped.Op)
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrapPlainErrorBecomesFatal(t *testing.T) {
	wrapped := Wrap("filewriter.WriteChunk", "filewriter", errors.New("disk full"))

	require.NotNil(t, wrapped)
	assert.Equal(t, CodeFatal, wrapped.Code)
	assert.Equal(t, "disk full", wrapped.Msg)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap("op", "component", nil))
}

func TestErrorStringIncludesOpAndComponent(t *testing.T) {
	err := NewQueueError("workqueue.Push", "workqueue", 2, CodeOffsetOutOfRange, "queue full")
	assert.Contains(t, err.Error(), "queue full")
	assert.Contains(t, err.Error(), "op=workqueue.Push")
	assert.Contains(t, err.Error(), "component=workqueue")
}
