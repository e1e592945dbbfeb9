package plugins

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/ipc"
)

// LiveView publishes a rate-limited subset of frames on the meta channel for
// an external viewer, another of spec.md §8's example chain plugins. It
// never blocks the chain: frames arriving faster than the configured
// interval are silently skipped, and publish failures are swallowed (the
// viewer's absence must never stall acquisition).
type LiveView struct {
	name string

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pub      *ipc.Publisher
	topic    string
}

// NewLiveView constructs a LiveView plugin publishing through pub.
func NewLiveView(name string, pub *ipc.Publisher) *LiveView {
	return &LiveView{name: name, pub: pub, topic: "liveview"}
}

func (p *LiveView) Name() string { return p.name }

// Configure accepts {"interval_ms": N, "topic": "..."}.
func (p *LiveView) Configure(ctx context.Context, config []byte) error {
	if len(config) == 0 {
		return nil
	}
	var cfg struct {
		IntervalMs int    `json:"interval_ms"`
		Topic      string `json:"topic"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = time.Duration(cfg.IntervalMs) * time.Millisecond
	if cfg.Topic != "" {
		p.topic = cfg.Topic
	}
	return nil
}

type liveViewHeader struct {
	Dataset     string  `json:"dataset"`
	FrameNumber int64   `json:"frameNumber"`
	DataType    int     `json:"dataType"`
	Dimensions  []int64 `json:"dimensions"`
}

// ProcessFrame forwards f unchanged, publishing a copy of it on the meta
// channel at most once per configured interval.
func (p *LiveView) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	p.mu.Lock()
	due := time.Since(p.last) >= p.interval
	if due {
		p.last = time.Now()
	}
	pub := p.pub
	topic := p.topic
	p.mu.Unlock()

	if due && pub != nil {
		header := liveViewHeader{
			Dataset:     f.DatasetName(),
			FrameNumber: f.FrameNumber(),
			DataType:    f.DataType(),
			Dimensions:  f.Dimensions(),
		}
		_ = pub.PublishMeta(topic, header, f.Data())
	}
	return f, nil
}
