package rxcontrol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	applied     Config
	dirtyKeys   map[string]bool
	preChargedN int
}

func (f *fakeApplier) ApplyConfig(ctx context.Context, cfg Config, dirty map[string]bool) error {
	f.applied = cfg
	f.dirtyKeys = dirty
	return nil
}

func (f *fakeApplier) PrechargeBuffers(ctx context.Context, numBuffers int) error {
	f.preChargedN = numBuffers
	return nil
}

func TestUpdateOnlyAppliesDirtyFields(t *testing.T) {
	applier := &fakeApplier{}
	c := New(Config{NumBuffers: 10, FrameTimeoutMs: 1000}, applier, nil)

	err := c.Update(context.Background(), Config{FrameTimeoutMs: 5000}, map[string]bool{"frame_timeout_ms": true})
	require.NoError(t, err)

	cur := c.Current()
	assert.Equal(t, 10, cur.NumBuffers) // unchanged
	assert.Equal(t, 5000, cur.FrameTimeoutMs)
}

func TestUpdateRejectsUnknownKey(t *testing.T) {
	c := New(Config{}, &fakeApplier{}, nil)
	err := c.Update(context.Background(), Config{}, map[string]bool{"bogus": true})
	assert.Error(t, err)
}

func TestPrechargeDelegatesToApplier(t *testing.T) {
	applier := &fakeApplier{}
	c := New(Config{}, applier, nil)
	require.NoError(t, c.Precharge(context.Background(), 16))
	assert.Equal(t, 16, applier.preChargedN)
}
