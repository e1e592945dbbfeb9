package plugins

import (
	"context"
	"encoding/json"

	"github.com/odin-pipeline/odin-go/internal/acquisition"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// PersistenceTail is the chain's terminal plugin: it routes each frame into
// an Acquisition (internal/acquisition, itself backed by an
// internal/filewriter.Writer) and flushes/closes files on the
// end-of-acquisition sentinel. It is the blocking tail registered with
// proccontrol.Controller.TailCallback for spec.md §8 scenario 5/6.
type PersistenceTail struct {
	name             string
	acq              *acquisition.Acquisition
	offsetAdjustment int64
	onFrameProcessed func(f interfaces.Frame)
}

// NewPersistenceTail constructs a PersistenceTail writing frames into acq.
// onFrameProcessed, if non-nil, is invoked with every data frame after it is
// written (and before it is released) so a processor controller can count
// completions toward its shutdown threshold.
func NewPersistenceTail(name string, acq *acquisition.Acquisition, onFrameProcessed func(interfaces.Frame)) *PersistenceTail {
	return &PersistenceTail{name: name, acq: acq, onFrameProcessed: onFrameProcessed}
}

func (p *PersistenceTail) Name() string { return p.name }

// Configure accepts {"offset_adjustment": N}, the per-rank frame-number
// correction acquisition.AdjustFrameOffset applies before sharding.
func (p *PersistenceTail) Configure(ctx context.Context, config []byte) error {
	if len(config) == 0 {
		return nil
	}
	var cfg struct {
		OffsetAdjustment int64 `json:"offset_adjustment"`
	}
	if err := json.Unmarshal(config, &cfg); err != nil {
		return odinerr.Wrap("plugins.PersistenceTail.Configure", "persistencetail", err)
	}
	p.offsetAdjustment = cfg.OffsetAdjustment
	return nil
}

// ProcessFrame writes f into the acquisition and releases it; the tail is
// terminal so it always returns a nil frame.
func (p *PersistenceTail) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	_, err := p.acq.ProcessFrame(f, p.offsetAdjustment)
	if p.onFrameProcessed != nil {
		p.onFrameProcessed(f)
	}
	f.Release()
	if err != nil {
		return nil, odinerr.Wrap("plugins.PersistenceTail.ProcessFrame", "persistencetail", err)
	}
	return nil, nil
}

// ProcessEndOfAcquisition closes the acquisition's open files, flushing any
// buffered chunks.
func (p *PersistenceTail) ProcessEndOfAcquisition(ctx context.Context) error {
	p.acq.Stop()
	return nil
}
