// Package rxcontrol implements the receiver's control-plane state machine:
// applying configuration deltas (a "dirty set" of changed keys) and the
// buffer-precharge handshake that primes the shared-memory arena's empty
// buffer queue before a run starts.
package rxcontrol

import (
	"context"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Config is the receiver's full runtime configuration. Only the fields
// present in an update's dirty set are applied; the rest retain their
// current values.
type Config struct {
	SharedBufferName string
	NumBuffers       int
	BufferSize       int
	FrameTimeoutMs   int
	DecoderType      string // "udp", "tcp", "zmq"
	Endpoint         string
	EnablePacketLog  bool
	// FrameHeaderSize reserves this many bytes at the front of each arena
	// buffer ahead of the reassembled packet payload (spec's image_offset).
	FrameHeaderSize int
}

// Applier is implemented by the receiver thread: it knows how to apply a
// configuration change that actually requires restarting I/O (a new
// decoder, new arena dimensions) versus one that can be applied live.
type Applier interface {
	ApplyConfig(ctx context.Context, cfg Config, dirty map[string]bool) error
	PrechargeBuffers(ctx context.Context, numBuffers int) error
}

// Controller owns the receiver's current configuration and applies
// deltas atomically with respect to concurrent reads.
type Controller struct {
	mu      sync.RWMutex
	current Config
	applier Applier
	logger  interfaces.Logger
}

// New constructs a Controller with an initial configuration.
func New(initial Config, applier Applier, logger interfaces.Logger) *Controller {
	return &Controller{current: initial, applier: applier, logger: logger}
}

// Current returns a copy of the active configuration.
func (c *Controller) Current() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Update applies changes, a partial configuration where only the fields
// the caller intends to change should differ from Current(); dirty names
// exactly which fields to apply (the "dirty set"), since Go's zero values
// are ambiguous with "unset" for some fields (e.g. EnablePacketLog=false).
func (c *Controller) Update(ctx context.Context, changes Config, dirty map[string]bool) error {
	c.mu.Lock()
	merged := c.current
	for key := range dirty {
		switch key {
		case "shared_buffer_name":
			merged.SharedBufferName = changes.SharedBufferName
		case "num_buffers":
			merged.NumBuffers = changes.NumBuffers
		case "buffer_size":
			merged.BufferSize = changes.BufferSize
		case "frame_timeout_ms":
			merged.FrameTimeoutMs = changes.FrameTimeoutMs
		case "decoder_type":
			merged.DecoderType = changes.DecoderType
		case "endpoint":
			merged.Endpoint = changes.Endpoint
		case "enable_packet_log":
			merged.EnablePacketLog = changes.EnablePacketLog
		case "frame_header_size":
			merged.FrameHeaderSize = changes.FrameHeaderSize
		default:
			c.mu.Unlock()
			return odinerr.New("rxcontrol.Update", "rxcontrol", odinerr.CodeConfigError, "unknown config key: "+key)
		}
	}
	c.mu.Unlock()

	if c.applier != nil {
		if err := c.applier.ApplyConfig(ctx, merged, dirty); err != nil {
			return odinerr.Wrap("rxcontrol.Update", "rxcontrol", err)
		}
	}

	c.mu.Lock()
	c.current = merged
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("receiver configuration applied", "keys", len(dirty))
	}
	return nil
}

// Precharge primes numBuffers empty buffers into the arena's free queue
// before a run starts, the handshake step the receiver requires before it
// will accept frame-ready notifications from the decoder.
func (c *Controller) Precharge(ctx context.Context, numBuffers int) error {
	if c.applier == nil {
		return nil
	}
	return c.applier.PrechargeBuffers(ctx, numBuffers)
}
