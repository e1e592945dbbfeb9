package odin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingPluginForwardsAndCountsEndOfAcquisition(t *testing.T) {
	p := NewRecordingPlugin("dst")

	for i := int64(0); i < 3; i++ {
		out, err := p.ProcessFrame(context.Background(), NewFrame(Metadata{FrameNumber: i}, nil))
		require.NoError(t, err)
		assert.Equal(t, i, out.FrameNumber())
	}
	require.NoError(t, p.ProcessEndOfAcquisition(context.Background()))

	assert.Equal(t, []int64{0, 1, 2}, p.Seen())
	assert.Equal(t, 1, p.EOACalls())
}

func TestIsCodeMatchesWrappedError(t *testing.T) {
	err := &Error{Op: "test.Op", Component: "test", Code: CodeInvalidFrame, Msg: "bad frame"}
	assert.True(t, IsCode(err, CodeInvalidFrame))
	assert.False(t, IsCode(err, CodeFatal))
}
