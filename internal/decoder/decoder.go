// Package decoder reassembles detector packets into frames in shared-memory
// buffers. Three wire-format variants (UDP, TCP, ZMQ) share a common
// per-frame-id state machine.
package decoder

import (
	"fmt"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// ReceiveState is a frame-in-progress' position in the reassembly state
// machine, matching the original implementation's FrameReceiveState enum.
type ReceiveState int

const (
	StateEmpty ReceiveState = iota
	StateIncomplete
	StateComplete
	StateTimedout
	StateError
)

// Header is the fixed-size packet header every wire format carries,
// identifying which frame and which piece of it a packet belongs to.
type Header struct {
	FrameNumber  int64
	PacketNumber int64
	PacketCount  int64
	FrameSize    int64
}

// BufferAllocator hands a decoder an empty arena buffer to reassemble a new
// frame into. Completed frames are reported through Config.OnFrameReady,
// not through the allocator.
type BufferAllocator interface {
	AcquireEmptyBuffer() (bufferID int, buf []byte, ok bool)
}

// FrameReadyFunc is invoked once a frame transitions to StateComplete.
// imageOffset is the decoder's configured FrameHeaderSize: the number of
// bytes reserved at the front of buf for a header the wire format doesn't
// carry, with reassembled packet payload starting right after it.
type FrameReadyFunc func(bufferID int, header Header, imageOffset int64)

// tagState tracks one in-progress frame's reassembly bookkeeping. The
// per-id mutex discipline (lock, check state, only transition after the
// write actually lands) mirrors the teacher's per-tag state machine, here
// applied to frame ids instead of device-queue tags.
type tagState struct {
	mu            sync.Mutex
	state         ReceiveState
	bufferID      int
	buf           []byte
	receivedBytes int64
	packetsSeen   map[int64]bool
	header        Header
}

// Decoder is the shared reassembly engine used by the UDP/TCP/ZMQ wire
// variants. It is not itself wire-format aware; Feed is called by a
// variant-specific reader with already-framed packet bytes.
type Decoder struct {
	logger      interfaces.Logger
	packetLog   interfaces.Logger
	allocator   BufferAllocator
	onReady     FrameReadyFunc
	frameHeader int

	mu    sync.Mutex
	tags  map[int64]*tagState
	drops int64
}

// Config configures a Decoder.
type Config struct {
	Logger          interfaces.Logger
	PacketLogger    interfaces.Logger // may be nil to disable packet logging
	Allocator       BufferAllocator
	OnFrameReady    FrameReadyFunc
	FrameHeaderSize int
}

// New constructs a Decoder.
func New(cfg Config) *Decoder {
	return &Decoder{
		logger:      cfg.Logger,
		packetLog:   cfg.PacketLogger,
		allocator:   cfg.Allocator,
		onReady:     cfg.OnFrameReady,
		frameHeader: cfg.FrameHeaderSize,
		tags:        make(map[int64]*tagState),
	}
}

func (d *Decoder) stateFor(frameNumber int64) *tagState {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts, ok := d.tags[frameNumber]
	if !ok {
		ts = &tagState{state: StateEmpty, packetsSeen: make(map[int64]bool)}
		d.tags[frameNumber] = ts
	}
	return ts
}

// Feed processes one packet's header and payload, advancing the relevant
// frame's state machine. It returns the frame's state after processing this
// packet.
func (d *Decoder) Feed(h Header, payload []byte) (ReceiveState, error) {
	if d.packetLog != nil {
		d.packetLog.Debug("packet", "frame", h.FrameNumber, "packet", h.PacketNumber, "of", h.PacketCount)
	}

	ts := d.stateFor(h.FrameNumber)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.state == StateEmpty {
		bufID, buf, ok := d.allocator.AcquireEmptyBuffer()
		if !ok {
			ts.state = StateError
			return StateError, odinerr.NewFrameError("decoder.Feed", "decoder", h.FrameNumber,
				odinerr.CodeInvalidBuffer, "no empty buffers available")
		}
		if h.FrameSize+int64(d.frameHeader) > int64(len(buf)) {
			ts.state = StateError
			return StateError, odinerr.NewFrameError("decoder.Feed", "decoder", h.FrameNumber,
				odinerr.CodeDecoderError, fmt.Sprintf("frame size %d plus header %d exceeds buffer size %d", h.FrameSize, d.frameHeader, len(buf)))
		}
		ts.bufferID = bufID
		ts.buf = buf
		ts.header = h
		ts.state = StateIncomplete
	}

	if ts.state != StateIncomplete {
		return ts.state, nil
	}

	if ts.packetsSeen[h.PacketNumber] {
		// Duplicate packet: ignore, state unchanged.
		return ts.state, nil
	}

	offset := int64(d.frameHeader) + h.PacketNumber*int64(len(payload))
	if offset < int64(d.frameHeader) || offset+int64(len(payload)) > int64(len(ts.buf)) {
		ts.state = StateError
		return StateError, odinerr.NewFrameError("decoder.Feed", "decoder", h.FrameNumber,
			odinerr.CodeDecoderError, "packet payload overruns frame buffer")
	}
	copy(ts.buf[offset:], payload)
	ts.packetsSeen[h.PacketNumber] = true
	ts.receivedBytes += int64(len(payload))

	if int64(len(ts.packetsSeen)) == h.PacketCount {
		ts.state = StateComplete
		if d.onReady != nil {
			d.onReady(ts.bufferID, ts.header, int64(d.frameHeader))
		}
		d.mu.Lock()
		delete(d.tags, h.FrameNumber)
		d.mu.Unlock()
	}
	return ts.state, nil
}

// Timeout marks an in-progress frame as timed out, e.g. when called by the
// receiver's tick handler for frames that have been Incomplete longer than
// the configured frame timeout.
func (d *Decoder) Timeout(frameNumber int64) {
	d.mu.Lock()
	ts, ok := d.tags[frameNumber]
	if ok {
		delete(d.tags, frameNumber)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	ts.mu.Lock()
	ts.state = StateTimedout
	ts.mu.Unlock()
	if d.logger != nil {
		d.logger.Warn("frame timed out", "frame", frameNumber)
	}
}

// NumIncomplete returns how many frames are currently mid-reassembly.
func (d *Decoder) NumIncomplete() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tags)
}

// DropAll discards all in-progress reassembly state, used on reconfiguration.
func (d *Decoder) DropAll() {
	d.mu.Lock()
	n := len(d.tags)
	d.tags = make(map[int64]*tagState)
	d.mu.Unlock()
	if n > 0 && d.logger != nil {
		d.logger.Warn("dropped unreleased buffers from decoder", "count", n)
	}
}
