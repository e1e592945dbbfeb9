package decoder

import (
	"io"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// TCPReader reads a sequential stream of header-prefixed packets off a TCP
// connection. Unlike UDP there is no datagram boundary to peek at, so the
// header is read first with a blocking full read, then exactly
// header.FrameSize/header.PacketCount payload bytes follow.
type TCPReader struct {
	conn io.Reader
	d    *Decoder
}

// NewTCPReader wraps a connected TCP stream.
func NewTCPReader(conn io.Reader, d *Decoder) *TCPReader {
	return &TCPReader{conn: conn, d: d}
}

// ReadOne reads exactly one header-prefixed packet from the stream.
func (r *TCPReader) ReadOne() (ReceiveState, error) {
	hdr := make([]byte, wireHeaderSize)
	if _, err := io.ReadFull(r.conn, hdr); err != nil {
		return StateError, odinerr.Wrap("tcp.ReadOne", "decoder", err)
	}
	h := parseHeader(hdr)

	payloadLen := h.FrameSize / headerPacketDivisor(h)
	payload := make([]byte, payloadLen)
	n, err := io.ReadFull(r.conn, payload)
	if err != nil {
		return StateError, odinerr.Wrap("tcp.ReadOne", "decoder", err)
	}
	if int64(n) != payloadLen {
		// Bytes beyond the expected frame size resolve to DecoderError,
		// not a silent truncation or buffer grow.
		return StateError, odinerr.NewFrameError("tcp.ReadOne", "decoder", h.FrameNumber,
			odinerr.CodeDecoderError, "payload length does not match declared frame size")
	}

	return r.d.Feed(h, payload)
}
