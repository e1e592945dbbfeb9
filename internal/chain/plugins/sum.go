package plugins

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Sum accumulates every incoming u16 frame elementwise into a running total,
// one of spec.md §8's example chain plugins ("compression, gap-filling,
// aggregation, live-view publication"). Configured with a frame count, it
// emits the accumulator as its own output frame every N inputs and resets.
type Sum struct {
	name string

	mu          sync.Mutex
	every       int
	seen        int
	accumulator []uint32
	dims        []int64
}

// NewSum constructs an unconfigured Sum plugin.
func NewSum(name string) *Sum { return &Sum{name: name, every: 1} }

func (p *Sum) Name() string { return p.name }

// Configure accepts {"emit_every": N}; N<=0 is treated as 1 (emit every frame).
func (p *Sum) Configure(ctx context.Context, config []byte) error {
	if len(config) == 0 {
		return nil
	}
	var cfg struct {
		EmitEvery int `json:"emit_every"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil {
		return odinerr.Wrap("plugins.Sum.Configure", "sum", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.EmitEvery > 0 {
		p.every = cfg.EmitEvery
	} else {
		p.every = 1
	}
	return nil
}

// ProcessFrame adds f's u16 payload into the running accumulator. It
// forwards nil until every frames have accumulated, then emits the sum as a
// new uint32 frame and resets.
func (p *Sum) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	if frame.DataType(f.DataType()) != frame.DataTypeUint16 {
		return nil, odinerr.NewFrameError("plugins.Sum.ProcessFrame", "sum", f.FrameNumber(), odinerr.CodeInvalidFrame, "sum plugin requires uint16 input")
	}

	data := f.Data()
	count := len(data) / 2

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accumulator == nil {
		p.accumulator = make([]uint32, count)
		p.dims = f.Dimensions()
	}
	for i := 0; i < count && i < len(p.accumulator); i++ {
		p.accumulator[i] += uint32(binary.LittleEndian.Uint16(data[i*2:]))
	}
	p.seen++

	if p.seen < p.every {
		return nil, nil
	}

	out := make([]byte, len(p.accumulator)*4)
	for i, v := range p.accumulator {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	meta := frame.Metadata{
		FrameNumber: f.FrameNumber(),
		DatasetName: f.DatasetName(),
		DataType:    frame.DataTypeUint32,
		Dimensions:  p.dims,
		Compression: frame.CompressionNone,
	}
	p.accumulator = nil
	p.seen = 0
	return frame.NewOwned(meta, out), nil
}
