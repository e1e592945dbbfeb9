package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
)

type recordingPlugin struct {
	mu   sync.Mutex
	name string
	seen []int64
}

func (p *recordingPlugin) Name() string                                       { return p.name }
func (p *recordingPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (p *recordingPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	p.mu.Lock()
	p.seen = append(p.seen, f.FrameNumber())
	p.mu.Unlock()
	return f, nil
}

func (p *recordingPlugin) Seen() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64{}, p.seen...)
}

func TestChainBlockingEdgeRunsInline(t *testing.T) {
	c := New(nil)
	src := &recordingPlugin{name: "src"}
	dst := &recordingPlugin{name: "dst"}
	c.Register("src", src)
	c.Register("dst", dst)
	require.NoError(t, c.Connect("src", "dst", true))
	require.True(t, c.IsValid())

	err := c.PushFrame(context.Background(), "src", frame.NewOwned(frame.Metadata{FrameNumber: 1}, nil))
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, src.Seen())
	assert.Equal(t, []int64{1}, dst.Seen())
}

func TestChainNonBlockingEdgeAsync(t *testing.T) {
	c := New(nil)
	src := &recordingPlugin{name: "src"}
	dst := &recordingPlugin{name: "dst"}
	c.Register("src", src)
	c.Register("dst", dst)
	require.NoError(t, c.Connect("src", "dst", false))

	c.Start(context.Background(), 4)
	defer c.Stop()

	err := c.PushFrame(context.Background(), "src", frame.NewOwned(frame.Metadata{FrameNumber: 7}, nil))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dst.Seen()) == 1
	}, time.Second, time.Millisecond)
}

func TestChainConnectUnknownPluginFails(t *testing.T) {
	c := New(nil)
	c.Register("src", &recordingPlugin{name: "src"})
	err := c.Connect("src", "missing", true)
	assert.Error(t, err)
}

func TestChainRejectsFrameWithUnknownDataType(t *testing.T) {
	c := New(nil)
	c.Register("src", &recordingPlugin{name: "src"})
	err := c.PushFrame(context.Background(), "src", frame.NewOwned(frame.Metadata{FrameNumber: 1, DataType: frame.DataTypeUnknown}, nil))
	assert.Error(t, err)
}

// eoaRecordingPlugin counts process_frame and process_end_of_acquisition
// invocations separately, per spec.md §8 scenario 5.
type eoaRecordingPlugin struct {
	recordingPlugin
	mu       sync.Mutex
	eoaCalls int
}

func (p *eoaRecordingPlugin) ProcessEndOfAcquisition(ctx context.Context) error {
	p.mu.Lock()
	p.eoaCalls++
	p.mu.Unlock()
	return nil
}

func (p *eoaRecordingPlugin) EOACalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eoaCalls
}

// TestChainEndOfAcquisitionDrain matches spec.md §8 scenario 5: after N data
// frames followed by one end-of-acquisition sentinel through a two-stage
// chain, each plugin must have run process_frame exactly N times and
// process_end_of_acquisition exactly once, and the tail must see the
// sentinel forwarded.
func TestChainEndOfAcquisitionDrain(t *testing.T) {
	c := New(nil)
	first := &eoaRecordingPlugin{recordingPlugin: recordingPlugin{name: "first"}}
	tail := &eoaRecordingPlugin{recordingPlugin: recordingPlugin{name: "tail"}}
	c.Register("first", first)
	c.Register("tail", tail)
	require.NoError(t, c.Connect("first", "tail", true))

	const n = 5
	for i := int64(0); i < n; i++ {
		require.NoError(t, c.PushFrame(context.Background(), "first", frame.NewOwned(frame.Metadata{FrameNumber: i}, nil)))
	}
	require.NoError(t, c.PushFrame(context.Background(), "first", frame.NewEndOfAcquisition("detector")))

	assert.Len(t, first.Seen(), n)
	assert.Len(t, tail.Seen(), n)
	assert.Equal(t, 1, first.EOACalls())
	assert.Equal(t, 1, tail.EOACalls())
}
