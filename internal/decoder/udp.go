package decoder

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// wireHeaderSize is the fixed on-wire header every packet carries ahead of
// its payload: frame_number, packet_number, packet_count, frame_size, each
// a big-endian uint64.
const wireHeaderSize = 32

// UDPReader reads detector packets off a UDP socket and feeds them to a
// Decoder. It peeks the header with MSG_PEEK so the payload length (and
// thus exactly how many bytes to read) is known before consuming the
// packet, avoiding a second syscall to discover a short read.
type UDPReader struct {
	fd int
	d  *Decoder
}

// NewUDPReader wraps an already-bound, already-connected-or-not UDP socket
// file descriptor.
func NewUDPReader(fd int, d *Decoder) *UDPReader {
	return &UDPReader{fd: fd, d: d}
}

// ReadOne peeks and consumes exactly one datagram, decoding its header and
// handing the payload to the Decoder.
func (r *UDPReader) ReadOne() (ReceiveState, error) {
	peek := make([]byte, wireHeaderSize)
	n, _, err := unix.Recvfrom(r.fd, peek, unix.MSG_PEEK)
	if err != nil {
		return StateError, odinerr.Wrap("udp.ReadOne", "decoder", err)
	}
	if n < wireHeaderSize {
		return StateError, odinerr.New("udp.ReadOne", "decoder", odinerr.CodeDecoderError, "short datagram header")
	}

	h := parseHeader(peek)

	full := make([]byte, wireHeaderSize+h.FrameSize/headerPacketDivisor(h))
	n, _, err = unix.Recvfrom(r.fd, full, 0)
	if err != nil {
		return StateError, odinerr.Wrap("udp.ReadOne", "decoder", err)
	}
	payload := full[wireHeaderSize:n]

	return r.d.Feed(h, payload)
}

func headerPacketDivisor(h Header) int64 {
	if h.PacketCount <= 0 {
		return 1
	}
	return h.PacketCount
}

func parseHeader(b []byte) Header {
	return Header{
		FrameNumber:  int64(binary.BigEndian.Uint64(b[0:8])),
		PacketNumber: int64(binary.BigEndian.Uint64(b[8:16])),
		PacketCount:  int64(binary.BigEndian.Uint64(b[16:24])),
		FrameSize:    int64(binary.BigEndian.Uint64(b[24:32])),
	}
}
