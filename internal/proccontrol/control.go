// Package proccontrol implements the processor's controller (C9): it mirrors
// the receiver controller (C6) on the processor side, mapping the shared
// arena, constructing shared-buffer frames off the frame-ready notification
// stream, and routing them into the plugin chain's virtual "frame_receiver"
// source. A tail plugin's blocking callback reports completed frames back to
// the controller, which detects end-of-acquisition by frame count.
package proccontrol

import (
	"context"
	"fmt"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/chain"
	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// SourceName is the virtual plugin name frames from the receiver are routed
// through, matching the original design's `frame_receiver` pseudo-source.
const SourceName = "frame_receiver"

// ArenaMapper is the narrow capability the controller needs from the shared
// buffer arena: map it by name, and resolve a buffer id to its bytes.
type ArenaMapper interface {
	MapArena(name string) error
	Buffer(bufferID int) ([]byte, error)
}

// FrameReleaser returns a consumed buffer to the receiver via the
// frame-release channel.
type FrameReleaser interface {
	ReleaseBuffer(bufferID int, frameNumber int64) error
}

// ConfigStore is the narrow persistence capability the controller needs for
// named stored configurations; internal/store provides a concrete
// implementation.
type ConfigStore interface {
	SaveConfig(name string, payload []byte) error
	LoadConfig(name string) ([]byte, error)
}

// FrameReadyNotification is the frame-ready channel's per-frame payload. The
// receiver's wire notification carries frame, buffer_id and image_offset;
// DatasetName/DataType/Dimensions/Compression are filled in by the caller
// from the processor's own per-dataset configuration before calling
// HandleFrameReady, since the receiver has no notion of frame contents.
type FrameReadyNotification struct {
	FrameNumber int64   `json:"frame"`
	BufferID    int     `json:"buffer_id"`
	DatasetName string  `json:"dataset,omitempty"`
	DataType    int     `json:"data_type,omitempty"`
	Dimensions  []int64 `json:"dimensions,omitempty"`
	Compression int     `json:"compression,omitempty"`
	// ImageOffset is the receiver's configured FrameHeaderSize, the byte
	// offset within the buffer where reassembled packet payload begins.
	ImageOffset int64 `json:"image_offset,omitempty"`
}

// Config configures a Controller.
type Config struct {
	// ShutdownFrameCount is the number of frames that must complete before
	// the controller signals shutdown. Zero disables count-based shutdown.
	ShutdownFrameCount int64
	// MasterDataset, if set, counts only frames on this dataset rather than
	// the acquisition total, for multi-dataset acquisitions.
	MasterDataset string
	Chain         *chain.Chain
	Arena         ArenaMapper
	Releaser      FrameReleaser
	Store         ConfigStore
	Logger        interfaces.Logger
	OnShutdown    func()
}

// Controller is the processor-side counterpart to rxcontrol.Controller.
type Controller struct {
	cfg Config

	mu               sync.Mutex
	arenaName        string
	framesCompleted  int64
	masterCompleted  int64
	shutdownNotified bool
}

// New constructs a Controller and registers the virtual frame_receiver
// source plugin on cfg.Chain so it can route incoming frames.
func New(cfg Config) *Controller {
	if cfg.Chain != nil {
		cfg.Chain.Register(SourceName, chain.NewSourcePlugin(SourceName))
	}
	return &Controller{cfg: cfg}
}

// HandleBufferConfig maps the arena announced on the frame-ready channel's
// buffer_config notification.
func (c *Controller) HandleBufferConfig(sharedBufferName string) error {
	if c.cfg.Arena == nil {
		return odinerr.New("proccontrol.HandleBufferConfig", "proccontrol", odinerr.CodeConfigError, "no arena mapper configured")
	}
	if err := c.cfg.Arena.MapArena(sharedBufferName); err != nil {
		return odinerr.Wrap("proccontrol.HandleBufferConfig", "proccontrol", err)
	}
	c.mu.Lock()
	c.arenaName = sharedBufferName
	c.mu.Unlock()
	return nil
}

// HandleFrameReady constructs a shared-buffer frame for n and pushes it into
// the chain at the frame_receiver source.
func (c *Controller) HandleFrameReady(ctx context.Context, n FrameReadyNotification) error {
	if c.cfg.Arena == nil || c.cfg.Chain == nil {
		return odinerr.New("proccontrol.HandleFrameReady", "proccontrol", odinerr.CodeConfigError, "controller not fully configured")
	}

	data, err := c.cfg.Arena.Buffer(n.BufferID)
	if err != nil {
		return odinerr.Wrap("proccontrol.HandleFrameReady", "proccontrol", err)
	}

	releaser := c.cfg.Releaser
	bufferID := n.BufferID
	frameNumber := n.FrameNumber
	onLastFree := func(id int) {
		if releaser != nil {
			releaser.ReleaseBuffer(id, frameNumber)
		}
	}

	f := frame.NewShared(frame.Metadata{
		FrameNumber: n.FrameNumber,
		DatasetName: n.DatasetName,
		DataType:    frame.DataType(n.DataType),
		Dimensions:  n.Dimensions,
		Compression: frame.Compression(n.Compression),
		ImageOffset: n.ImageOffset,
	}, data, bufferID, 1, onLastFree)

	if err := c.cfg.Chain.PushFrame(ctx, SourceName, f); err != nil {
		return odinerr.Wrap("proccontrol.HandleFrameReady", "proccontrol", err)
	}
	return nil
}

// TailCallback is registered as the persistence tail's blocking callback. It
// counts completed frames and, once the configured shutdown count is
// reached, invokes cfg.OnShutdown exactly once.
func (c *Controller) TailCallback(f interfaces.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.framesCompleted++
	if c.cfg.MasterDataset != "" && f.DatasetName() == c.cfg.MasterDataset {
		c.masterCompleted++
	}

	if c.shutdownNotified || c.cfg.ShutdownFrameCount <= 0 {
		return
	}

	count := c.framesCompleted
	if c.cfg.MasterDataset != "" {
		count = c.masterCompleted
	}
	if count >= c.cfg.ShutdownFrameCount {
		c.shutdownNotified = true
		if c.cfg.OnShutdown != nil {
			go c.cfg.OnShutdown()
		}
	}
}

// FramesCompleted returns the number of frames observed by TailCallback.
func (c *Controller) FramesCompleted() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framesCompleted
}

// SaveConfiguration persists payload under name for later replay.
func (c *Controller) SaveConfiguration(name string, payload []byte) error {
	if c.cfg.Store == nil {
		return odinerr.New("proccontrol.SaveConfiguration", "proccontrol", odinerr.CodeConfigError, "no config store configured")
	}
	return c.cfg.Store.SaveConfig(name, payload)
}

// ApplyStoredConfiguration loads the configuration saved under name and
// applies it via apply, so the caller controls exactly how the payload is
// distributed (e.g. as a batch of per-plugin Configure calls).
func (c *Controller) ApplyStoredConfiguration(ctx context.Context, name string, apply func(ctx context.Context, payload []byte) error) error {
	if c.cfg.Store == nil {
		return odinerr.New("proccontrol.ApplyStoredConfiguration", "proccontrol", odinerr.CodeConfigError, "no config store configured")
	}
	payload, err := c.cfg.Store.LoadConfig(name)
	if err != nil {
		return odinerr.Wrap("proccontrol.ApplyStoredConfiguration", "proccontrol", err)
	}
	return apply(ctx, payload)
}

// RequestCommands aggregates the command list of every plugin in plugins
// that implements interfaces.CommandProvider, keyed by plugin name.
func RequestCommands(plugins map[string]interfaces.Plugin) map[string][]string {
	out := make(map[string][]string, len(plugins))
	for name, p := range plugins {
		if cp, ok := p.(interfaces.CommandProvider); ok {
			out[name] = cp.Commands()
		}
	}
	return out
}

// Execute dispatches cmd to the named plugin if it implements
// interfaces.CommandProvider.
func Execute(ctx context.Context, plugins map[string]interfaces.Plugin, pluginName, cmd string, params []byte) ([]byte, error) {
	p, ok := plugins[pluginName]
	if !ok {
		return nil, odinerr.New("proccontrol.Execute", "proccontrol", odinerr.CodeConfigError, fmt.Sprintf("unknown plugin %q", pluginName))
	}
	cp, ok := p.(interfaces.CommandProvider)
	if !ok {
		return nil, odinerr.New("proccontrol.Execute", "proccontrol", odinerr.CodeConfigError, fmt.Sprintf("plugin %q does not support commands", pluginName))
	}
	return cp.Execute(ctx, cmd, params)
}
