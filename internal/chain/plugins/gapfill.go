// Package plugins implements concrete processor plugins: the gap-fill
// reshape plugin (spec.md §8 scenario 4), the sum and live-view plugins,
// and the persistence tail that drives internal/acquisition and
// internal/filewriter.
package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// GapFill reshapes a dense grid-of-chips frame into the detector's physical
// layout by inserting the configured inter-chip gaps, zero-filling them.
// Grounded on spec.md §8 scenario 4's grid/chip/x_gaps/y_gaps geometry.
type GapFill struct {
	name string

	mu         sync.Mutex
	grid       [2]int
	chip       [2]int
	xGaps      []int
	yGaps      []int
	rowOffsets []int
	colOffsets []int
	outRows    int
	outCols    int
	configured bool
}

// NewGapFill constructs an unconfigured GapFill plugin registered under name.
func NewGapFill(name string) *GapFill { return &GapFill{name: name} }

func (p *GapFill) Name() string { return p.name }

type gapFillConfig struct {
	Grid  []int `json:"grid"`
	Chip  []int `json:"chip"`
	XGaps []int `json:"x_gaps"`
	YGaps []int `json:"y_gaps"`
}

// Configure parses grid/chip/x_gaps/y_gaps and precomputes the per-chip
// output offsets.
func (p *GapFill) Configure(ctx context.Context, config []byte) error {
	var cfg gapFillConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return odinerr.Wrap("plugins.GapFill.Configure", "gapfill", err)
	}
	if len(cfg.Grid) != 2 || len(cfg.Chip) != 2 {
		return odinerr.New("plugins.GapFill.Configure", "gapfill", odinerr.CodeConfigError, "grid and chip must each have 2 elements")
	}
	if len(cfg.YGaps) != cfg.Grid[0]+1 || len(cfg.XGaps) != cfg.Grid[1]+1 {
		return odinerr.New("plugins.GapFill.Configure", "gapfill", odinerr.CodeConfigError, "x_gaps/y_gaps length must be grid dimension + 1")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid = [2]int{cfg.Grid[0], cfg.Grid[1]}
	p.chip = [2]int{cfg.Chip[0], cfg.Chip[1]}
	p.xGaps = cfg.XGaps
	p.yGaps = cfg.YGaps
	p.rowOffsets = chipOffsets(cfg.YGaps, cfg.Grid[0], cfg.Chip[0])
	p.colOffsets = chipOffsets(cfg.XGaps, cfg.Grid[1], cfg.Chip[1])
	p.outRows = p.rowOffsets[cfg.Grid[0]-1] + cfg.Chip[0] + cfg.YGaps[cfg.Grid[0]]
	p.outCols = p.colOffsets[cfg.Grid[1]-1] + cfg.Chip[1] + cfg.XGaps[cfg.Grid[1]]
	p.configured = true
	return nil
}

// chipOffsets computes, for each of n chips of chipSize arranged along one
// axis separated by gaps (len(gaps) == n+1), the output-axis offset of each
// chip's first row/column: offset[i] = sum(gaps[0..i]) + i*chipSize.
func chipOffsets(gaps []int, n, chipSize int) []int {
	out := make([]int, n)
	running := 0
	for i := 0; i < n; i++ {
		running += gaps[i]
		out[i] = running
		running += chipSize
	}
	return out
}

func elemSizeFor(dataType int) int {
	switch frame.DataType(dataType) {
	case frame.DataTypeUint8:
		return 1
	case frame.DataTypeUint16:
		return 2
	case frame.DataTypeUint32, frame.DataTypeFloat:
		return 4
	case frame.DataTypeUint64:
		return 8
	default:
		return 1
	}
}

// ProcessFrame expands f's dense grid-of-chips payload into the gap-filled
// layout, zero-filling the gaps.
func (p *GapFill) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.configured {
		return nil, odinerr.NewFrameError("plugins.GapFill.ProcessFrame", "gapfill", f.FrameNumber(), odinerr.CodeConfigError, "gap-fill plugin not configured")
	}

	dims := f.Dimensions()
	if len(dims) != 2 {
		return nil, odinerr.NewFrameError("plugins.GapFill.ProcessFrame", "gapfill", f.FrameNumber(), odinerr.CodeInvalidFrame, "gap-fill requires a 2-D frame")
	}

	inRows, inCols := int(dims[0]), int(dims[1])
	wantRows, wantCols := p.grid[0]*p.chip[0], p.grid[1]*p.chip[1]
	if inRows != wantRows || inCols != wantCols {
		return nil, odinerr.NewFrameError("plugins.GapFill.ProcessFrame", "gapfill", f.FrameNumber(), odinerr.CodeInvalidFrame,
			fmt.Sprintf("expected %dx%d input, got %dx%d", wantRows, wantCols, inRows, inCols))
	}

	elemSize := elemSizeFor(f.DataType())
	src := f.Data()
	out := make([]byte, p.outRows*p.outCols*elemSize)

	for gr := 0; gr < p.grid[0]; gr++ {
		for gc := 0; gc < p.grid[1]; gc++ {
			rowOff, colOff := p.rowOffsets[gr], p.colOffsets[gc]
			for cr := 0; cr < p.chip[0]; cr++ {
				srcRow := gr*p.chip[0] + cr
				dstRow := rowOff + cr
				srcStart := (srcRow*inCols + gc*p.chip[1]) * elemSize
				dstStart := (dstRow*p.outCols + colOff) * elemSize
				copy(out[dstStart:dstStart+p.chip[1]*elemSize], src[srcStart:srcStart+p.chip[1]*elemSize])
			}
		}
	}

	meta := frame.Metadata{
		FrameNumber: f.FrameNumber(),
		DatasetName: f.DatasetName(),
		DataType:    frame.DataType(f.DataType()),
		Dimensions:  []int64{int64(p.outRows), int64(p.outCols)},
		Compression: frame.Compression(f.Compression()),
	}
	return frame.NewWrapper(f, meta, out), nil
}
