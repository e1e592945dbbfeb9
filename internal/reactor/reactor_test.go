package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesRing(t *testing.T) {
	r, err := New(Config{Entries: 32})
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()
}

func TestRegisterUnregisterReadable(t *testing.T) {
	r, err := New(Config{Entries: 32})
	require.NoError(t, err)
	defer r.Close()

	called := false
	r.RegisterReadable(3, func(fd int) { called = true })
	require.Contains(t, r.fds, 3)

	r.Unregister(3)
	require.NotContains(t, r.fds, 3)
	require.False(t, called)
}

func TestRunStopsOnTick(t *testing.T) {
	ticks := 0
	r, err := New(Config{
		Entries:    32,
		TickPeriod: 5 * time.Millisecond,
		OnTick:     func() { ticks++ },
	})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = r.Run(ctx)
	require.NoError(t, err)
	require.Greater(t, ticks, 0)
}
