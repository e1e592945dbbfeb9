// Package workqueue implements the bounded per-plugin work queue and
// worker goroutine lifecycle, grounded on the teacher's one-goroutine-
// per-queue Runner (Start/Stop/drain/is_working poll), generalized from
// device I/O tags to plugin frame processing.
package workqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
)

// Stats aggregates a plugin's processing duration the same way the
// teacher's Metrics.recordLatency histogram does (last/max/mean), here
// specialized to per-plugin timing instead of per-device I/O timing.
type Stats struct {
	mu    sync.Mutex
	last  time.Duration
	max   time.Duration
	sum   time.Duration
	count int64
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

// Queue is a bounded FIFO of frames feeding a single worker goroutine that
// runs a plugin's ProcessFrame for each one.
type Queue struct {
	name    string
	items   chan interfaces.Frame
	plugin  interfaces.Plugin
	next    func(interfaces.Frame)
	logger  interfaces.Logger
	stats   Stats
	depth   int32
	dropped int64
	working int32
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config configures a Queue.
type Config struct {
	Name     string
	Capacity int
	Plugin   interfaces.Plugin
	Next     func(interfaces.Frame) // called with the plugin's output, nil if terminal
	Logger   interfaces.Logger
}

// New constructs a Queue. The worker goroutine is not started until Start
// is called.
func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	return &Queue{
		name:   cfg.Name,
		items:  make(chan interfaces.Frame, cfg.Capacity),
		plugin: cfg.Plugin,
		next:   cfg.Next,
		logger: cfg.Logger,
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.run()
}

// Stop cancels the worker and waits for it to drain and exit.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Push enqueues a frame for processing. It returns false (and drops the
// frame) if the queue is full, incrementing the dropped counter instead of
// blocking the caller.
func (q *Queue) Push(f interfaces.Frame) bool {
	select {
	case q.items <- f:
		atomic.AddInt32(&q.depth, 1)
		return true
	default:
		atomic.AddInt64(&q.dropped, 1)
		if q.logger != nil {
			q.logger.Warn("queue full, dropping frame", "queue", q.name, "frame", f.FrameNumber())
		}
		return false
	}
}

// Depth returns the number of items currently queued.
func (q *Queue) Depth() int {
	return int(atomic.LoadInt32(&q.depth))
}

// Dropped returns the number of frames dropped due to backpressure.
func (q *Queue) Dropped() int64 {
	return atomic.LoadInt64(&q.dropped)
}

// IsWorking reports whether the worker is currently inside ProcessFrame,
// mirroring the teacher's is_working poll used by shutdown sequencing.
func (q *Queue) IsWorking() bool {
	return atomic.LoadInt32(&q.working) != 0
}

// Stats returns the queue's processing-duration aggregate.
func (q *Queue) Stats() *Stats {
	return &q.stats
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case f, ok := <-q.items:
			if !ok {
				return
			}
			q.process(f)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case f := <-q.items:
			q.process(f)
		default:
			return
		}
	}
}

func (q *Queue) process(f interfaces.Frame) {
	atomic.AddInt32(&q.depth, -1)
	atomic.StoreInt32(&q.working, 1)
	start := time.Now()

	out, err := interfaces.Invoke(q.ctx, q.plugin, f)
	q.stats.record(time.Since(start))
	atomic.StoreInt32(&q.working, 0)

	if err != nil {
		if q.logger != nil {
			q.logger.Error("plugin failed", "queue", q.name, "frame", f.FrameNumber(), "error", err)
		}
		return
	}
	if out != nil && q.next != nil {
		q.next(out)
	}
}
