package plugins

import (
	"context"
	"testing"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveViewForwardsFrameUnchanged(t *testing.T) {
	p := NewLiveView("liveview", nil)
	in := mkU16Frame(0, []uint16{1, 2, 3})
	out, err := p.ProcessFrame(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestLiveViewConfigureAcceptsIntervalAndTopic(t *testing.T) {
	p := NewLiveView("liveview", nil)
	require.NoError(t, p.Configure(context.Background(), []byte(`{"interval_ms": 500, "topic": "viewer"}`)))
	assert.Equal(t, "viewer", p.topic)
}

func TestLiveViewToleratesNilPublisherWithoutError(t *testing.T) {
	p := NewLiveView("liveview", nil)
	for i := int64(0); i < 5; i++ {
		_, err := p.ProcessFrame(context.Background(), mkU16Frame(i, []uint16{1}))
		require.NoError(t, err)
	}
}
