package decoder

import (
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// ZMQSocket is the minimal receive contract this decoder variant needs from
// a ZeroMQ socket (satisfied by *zmq4.Socket).
type ZMQSocket interface {
	RecvMessageBytes(flags int) ([][]byte, error)
}

// ZMQReader decodes frames carried as ZeroMQ multi-part messages: a first
// part holding the header, a second part holding the raw payload. Unlike
// UDP/TCP there is no separate packetization step — ZMQ's own message
// framing already delivers a whole packet's bytes atomically.
type ZMQReader struct {
	sock ZMQSocket
	d    *Decoder
}

// NewZMQReader wraps a ZMQ socket already bound/connected by the caller.
func NewZMQReader(sock ZMQSocket, d *Decoder) *ZMQReader {
	return &ZMQReader{sock: sock, d: d}
}

// ReadOne receives and decodes one multi-part message.
func (r *ZMQReader) ReadOne() (ReceiveState, error) {
	parts, err := r.sock.RecvMessageBytes(0)
	if err != nil {
		return StateError, odinerr.Wrap("zmq.ReadOne", "decoder", err)
	}
	if len(parts) != 2 {
		return StateError, odinerr.New("zmq.ReadOne", "decoder", odinerr.CodeDecoderError,
			"expected exactly 2 message parts (header, payload)")
	}
	if len(parts[0]) < wireHeaderSize {
		return StateError, odinerr.New("zmq.ReadOne", "decoder", odinerr.CodeDecoderError, "short header part")
	}

	h := parseHeader(parts[0])
	return r.d.Feed(h, parts[1])
}
