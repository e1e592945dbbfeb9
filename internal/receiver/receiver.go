// Package receiver implements the receiver process's core thread: a loop
// that polls a wire-format Reader, driving a Decoder over a shared-memory
// arena's buffers.
package receiver

import (
	"context"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/arena"
	"github.com/odin-pipeline/odin-go/internal/decoder"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Reader is satisfied by any of decoder.UDPReader/TCPReader/ZMQReader: read
// exactly one unit of wire data and advance the decoder's state machine.
type Reader interface {
	ReadOne() (decoder.ReceiveState, error)
}

// FrameReadyCallback is invoked with the buffer index, frame header, and
// image offset (bytes reserved at the front of the buffer ahead of the
// reassembled payload) whenever a frame completes reassembly.
type FrameReadyCallback func(bufferID int, header decoder.Header, imageOffset int64)

// Receiver owns a shared-memory arena's empty-buffer free list and drives
// a Reader/Decoder pair to reassemble incoming packets into it.
type Receiver struct {
	arena  *arena.Arena
	dec    *decoder.Decoder
	reader Reader
	logger interfaces.Logger

	mu    sync.Mutex
	empty []int
}

// Config configures a Receiver.
type Config struct {
	Arena        *arena.Arena
	Logger       interfaces.Logger
	PacketLogger interfaces.Logger
	OnFrameReady FrameReadyCallback
	// FrameHeaderSize reserves this many bytes at the front of each arena
	// buffer ahead of the reassembled packet payload, e.g. for a detector
	// header filled in separately from the wire reassembly.
	FrameHeaderSize int
}

// New constructs a Receiver bound to arena, wiring its own empty-buffer
// queue as the decoder's BufferAllocator.
func New(cfg Config) *Receiver {
	r := &Receiver{arena: cfg.Arena, logger: cfg.Logger}
	r.dec = decoder.New(decoder.Config{
		Logger:          cfg.Logger,
		PacketLogger:    cfg.PacketLogger,
		Allocator:       r,
		FrameHeaderSize: cfg.FrameHeaderSize,
		OnFrameReady: func(bufferID int, h decoder.Header, imageOffset int64) {
			if cfg.OnFrameReady != nil {
				cfg.OnFrameReady(bufferID, h, imageOffset)
			}
		},
	})
	return r
}

// SetReader attaches the wire-format reader (UDP/TCP/ZMQ) this Receiver
// polls in Run.
func (r *Receiver) SetReader(reader Reader) {
	r.reader = reader
}

// Decoder returns the Receiver's internal decoder, so a caller constructing
// a transport-specific Reader (decoder.NewUDPReader, NewTCPReader,
// NewZMQReader) can bind it to the same state machine this Receiver drives.
func (r *Receiver) Decoder() *decoder.Decoder {
	return r.dec
}

// Precharge pushes the first n buffer indices of the arena onto the empty
// queue, the handshake step performed before a run starts.
func (r *Receiver) Precharge(n int) error {
	if n > r.arena.NumBuffers() {
		return odinerr.New("receiver.Precharge", "receiver", odinerr.CodeConfigError, "precharge count exceeds arena capacity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.empty = append(r.empty, i)
	}
	return nil
}

// PushEmptyBuffer returns a buffer (e.g. one the processor has finished
// with) to the free queue so it can be reused for a future frame.
func (r *Receiver) PushEmptyBuffer(bufferID int) {
	r.mu.Lock()
	r.empty = append(r.empty, bufferID)
	r.mu.Unlock()
}

// AcquireEmptyBuffer implements decoder.BufferAllocator.
func (r *Receiver) AcquireEmptyBuffer() (int, []byte, bool) {
	r.mu.Lock()
	if len(r.empty) == 0 {
		r.mu.Unlock()
		return 0, nil, false
	}
	id := r.empty[0]
	r.empty = r.empty[1:]
	r.mu.Unlock()

	buf, err := r.arena.Buffer(id)
	if err != nil {
		return 0, nil, false
	}
	return id, buf, true
}

// NumEmptyBuffers returns how many buffers are currently free.
func (r *Receiver) NumEmptyBuffers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.empty)
}

// NumIncomplete returns how many frames are mid-reassembly.
func (r *Receiver) NumIncomplete() int {
	return r.dec.NumIncomplete()
}

// DropAllBuffers discards all in-progress reassembly state and clears the
// empty queue, used on reconfiguration.
func (r *Receiver) DropAllBuffers() {
	r.dec.DropAll()
	r.mu.Lock()
	r.empty = nil
	r.mu.Unlock()
}

// Run polls the attached reader in a loop until ctx is cancelled, calling
// ReadOne on each pass. It is the read path cmd/odin-receiver uses; it
// does not go through internal/reactor.
func (r *Receiver) Run(ctx context.Context) error {
	if r.reader == nil {
		return odinerr.New("receiver.Run", "receiver", odinerr.CodeConfigError, "no reader attached")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := r.reader.ReadOne(); err != nil {
			if r.logger != nil {
				r.logger.Warn("read failed", "error", err)
			}
		}
	}
}
