package filewriter

import (
	"context"
	"sync"
	"time"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
)

// watchdog arms a timer around a blocking container call and invokes a
// callback if the call overruns its threshold, without interrupting the
// call itself. Grounded on the original implementation's WatchdogTimer
// (start_timer/finish_timer plus a heartbeat thread), reimplemented with a
// single time.Timer and a context.Context instead of a dedicated reactor
// thread — Go's scheduler makes a second OS thread unnecessary here.
type watchdog struct {
	logger   interfaces.Logger
	onExpire func(functionName string)
}

func newWatchdog(logger interfaces.Logger, onExpire func(string)) *watchdog {
	return &watchdog{logger: logger, onExpire: onExpire}
}

// call runs fn under a watchdog of timeoutMs milliseconds, recording the
// elapsed time into stats and logging at Warn if it exceeds 10% of the
// threshold.
func (w *watchdog) call(ctx context.Context, functionName string, timeoutMs int, stats *Stats, fn func() error) error {
	if timeoutMs <= 0 {
		start := time.Now()
		err := fn()
		stats.record(time.Since(start))
		return err
	}

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	done := make(chan error, 1)
	start := time.Now()

	go func() { done <- fn() }()

	expired := false
	for {
		select {
		case <-timer.C:
			expired = true
			if w.onExpire != nil {
				w.onExpire(functionName)
			}
		case err := <-done:
			elapsed := time.Since(start)
			stats.record(elapsed)
			if expired || elapsed > time.Duration(timeoutMs)*time.Millisecond/10 {
				if w.logger != nil {
					w.logger.Warn("container call exceeded watchdog threshold", "call", functionName, "elapsed_ms", elapsed.Milliseconds())
				}
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats aggregates a container call's duration, the same last/max/mean
// shape used elsewhere in the pipeline (workqueue.Stats), specialized to
// per-call-kind timing here.
type Stats struct {
	mu             sync.Mutex
	last, max, sum time.Duration
	count          int64
}

func (s *Stats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = d
	if d > s.max {
		s.max = d
	}
	s.sum += d
	s.count++
}

// Snapshot returns the current last/max/mean durations.
func (s *Stats) Snapshot() (last, max, mean time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return 0, 0, 0
	}
	return s.last, s.max, s.sum / time.Duration(s.count)
}
