package odin

import (
	"context"
	"sync"
)

// RecordingPlugin is a Plugin that forwards every frame unchanged while
// recording the frame numbers and end-of-acquisition calls it has seen,
// for a third-party plugin author to use as the downstream stage in their
// own unit tests (e.g. asserting their plugin emits exactly the expected
// sequence of outputs).
type RecordingPlugin struct {
	name string

	mu       sync.Mutex
	seen     []int64
	eoaCalls int
}

// NewRecordingPlugin constructs a RecordingPlugin registered under name.
func NewRecordingPlugin(name string) *RecordingPlugin {
	return &RecordingPlugin{name: name}
}

func (p *RecordingPlugin) Name() string { return p.name }

func (p *RecordingPlugin) Configure(ctx context.Context, config []byte) error { return nil }

func (p *RecordingPlugin) ProcessFrame(ctx context.Context, f Frame) (Frame, error) {
	p.mu.Lock()
	p.seen = append(p.seen, f.FrameNumber())
	p.mu.Unlock()
	return f, nil
}

// ProcessEndOfAcquisition implements EndOfAcquisitionHandler.
func (p *RecordingPlugin) ProcessEndOfAcquisition(ctx context.Context) error {
	p.mu.Lock()
	p.eoaCalls++
	p.mu.Unlock()
	return nil
}

// Seen returns the frame numbers observed by ProcessFrame, in order.
func (p *RecordingPlugin) Seen() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64{}, p.seen...)
}

// EOACalls returns how many times ProcessEndOfAcquisition has run.
func (p *RecordingPlugin) EOACalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eoaCalls
}
