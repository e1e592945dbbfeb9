package workqueue

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

type passThroughPlugin struct {
	name string
}

func (p *passThroughPlugin) Name() string                                       { return p.name }
func (p *passThroughPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (p *passThroughPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	return f, nil
}

func TestQueueProcessesFrames(t *testing.T) {
	var mu sync.Mutex
	var seen []int64

	q := New(Config{
		Name:     "test",
		Capacity: 4,
		Plugin:   &passThroughPlugin{name: "test"},
		Next: func(f interfaces.Frame) {
			mu.Lock()
			seen = append(seen, f.FrameNumber())
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	for i := int64(1); i <= 3; i++ {
		ok := q.Push(frame.NewOwned(frame.Metadata{FrameNumber: i}, nil))
		require.True(t, ok)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, time.Millisecond)
}

func TestQueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := New(Config{
		Name:     "blocked",
		Capacity: 1,
		Plugin:   &blockingPlugin{block: block},
	})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	assert.True(t, q.Push(frame.NewOwned(frame.Metadata{FrameNumber: 1}, nil)))
	// Give the worker a chance to pick up the first item and block on it.
	time.Sleep(10 * time.Millisecond)
	assert.True(t, q.Push(frame.NewOwned(frame.Metadata{FrameNumber: 2}, nil)))
	assert.False(t, q.Push(frame.NewOwned(frame.Metadata{FrameNumber: 3}, nil)))
	assert.Equal(t, int64(1), q.Dropped())
}

type blockingPlugin struct {
	block chan struct{}
}

func (p *blockingPlugin) Name() string                                       { return "blocking" }
func (p *blockingPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (p *blockingPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	<-p.block
	return nil, nil
}
