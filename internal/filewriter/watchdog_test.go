package filewriter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdogRecordsFastCall(t *testing.T) {
	wd := newWatchdog(nil, nil)
	var stats Stats

	err := wd.call(context.Background(), "fast", 1000, &stats, func() error {
		return nil
	})
	require.NoError(t, err)

	last, _, _ := stats.Snapshot()
	assert.Greater(t, last, time.Duration(0))
}

func TestWatchdogFiresOnExpireWithoutAbortingCall(t *testing.T) {
	var stats Stats
	var expired bool
	wd := newWatchdog(nil, func(fn string) { expired = true })

	done := make(chan struct{})
	err := wd.call(context.Background(), "slow", 10, &stats, func() error {
		time.Sleep(50 * time.Millisecond)
		close(done)
		return nil
	})
	require.NoError(t, err)
	<-done
	assert.True(t, expired)
}

func TestWatchdogZeroTimeoutRunsSynchronously(t *testing.T) {
	wd := newWatchdog(nil, nil)
	var stats Stats
	called := false

	err := wd.call(context.Background(), "sync", 0, &stats, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStatsSnapshotAggregates(t *testing.T) {
	var stats Stats
	stats.record(10 * time.Millisecond)
	stats.record(30 * time.Millisecond)

	last, max, mean := stats.Snapshot()
	assert.Equal(t, 30*time.Millisecond, last)
	assert.Equal(t, 30*time.Millisecond, max)
	assert.Equal(t, 20*time.Millisecond, mean)
}
