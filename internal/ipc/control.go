// Package ipc implements the pipeline's control-plane and data-plane
// transport: a DEALER/ROUTER request-reply pair for control messages, and
// PUB/SUB sockets for the frame-ready, frame-release and meta channels.
// This is the actual "dealer/router request-reply over a message bus"
// transport the pipeline's external interface names, built on ZeroMQ.
package ipc

import (
	"encoding/json"

	"github.com/pebbe/zmq4"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// ControlMessage is the JSON envelope exchanged over the control channel.
type ControlMessage struct {
	MsgType   string          `json:"msg_type"`
	MsgVal    string          `json:"msg_val"`
	ID        int64           `json:"msg_id"`
	Timestamp string          `json:"timestamp"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// ControlServer answers control requests over a ROUTER socket bound to
// addr. Each request arrives with an identity frame that Reply must echo
// back so zmq4 routes the response to the right DEALER peer.
type ControlServer struct {
	sock *zmq4.Socket
}

// NewControlServer binds a ROUTER socket at addr.
func NewControlServer(addr string) (*ControlServer, error) {
	sock, err := zmq4.NewSocket(zmq4.ROUTER)
	if err != nil {
		return nil, odinerr.Wrap("ipc.NewControlServer", "ipc", err)
	}
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return nil, odinerr.Wrap("ipc.NewControlServer", "ipc", err)
	}
	return &ControlServer{sock: sock}, nil
}

// Recv blocks for the next request, returning the peer identity frame (to
// be passed back to Reply) and the decoded message.
func (s *ControlServer) Recv() (identity []byte, msg ControlMessage, err error) {
	parts, rerr := s.sock.RecvMessageBytes(0)
	if rerr != nil {
		return nil, ControlMessage{}, odinerr.Wrap("ipc.ControlServer.Recv", "ipc", rerr)
	}
	if len(parts) < 3 {
		return nil, ControlMessage{}, odinerr.New("ipc.ControlServer.Recv", "ipc", odinerr.CodeDecoderError, "malformed control request")
	}
	// parts: [identity, empty delimiter, payload]
	identity = parts[0]
	var m ControlMessage
	if uerr := json.Unmarshal(parts[len(parts)-1], &m); uerr != nil {
		return nil, ControlMessage{}, odinerr.Wrap("ipc.ControlServer.Recv", "ipc", uerr)
	}
	return identity, m, nil
}

// Reply sends a response back to the peer identified by identity.
func (s *ControlServer) Reply(identity []byte, msg ControlMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return odinerr.Wrap("ipc.ControlServer.Reply", "ipc", err)
	}
	_, err = s.sock.SendMessage(identity, []byte{}, payload)
	if err != nil {
		return odinerr.Wrap("ipc.ControlServer.Reply", "ipc", err)
	}
	return nil
}

// Close releases the socket.
func (s *ControlServer) Close() error {
	return s.sock.Close()
}

// ControlClient sends control requests over a DEALER socket connected to
// addr and waits for the matching reply.
type ControlClient struct {
	sock *zmq4.Socket
}

// NewControlClient connects a DEALER socket to addr.
func NewControlClient(addr string) (*ControlClient, error) {
	sock, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		return nil, odinerr.Wrap("ipc.NewControlClient", "ipc", err)
	}
	if err := sock.Connect(addr); err != nil {
		sock.Close()
		return nil, odinerr.Wrap("ipc.NewControlClient", "ipc", err)
	}
	return &ControlClient{sock: sock}, nil
}

// Send transmits a control message and waits for the reply.
func (c *ControlClient) Send(msg ControlMessage) (ControlMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return ControlMessage{}, odinerr.Wrap("ipc.ControlClient.Send", "ipc", err)
	}
	if _, err := c.sock.SendMessage([]byte{}, payload); err != nil {
		return ControlMessage{}, odinerr.Wrap("ipc.ControlClient.Send", "ipc", err)
	}

	parts, err := c.sock.RecvMessageBytes(0)
	if err != nil {
		return ControlMessage{}, odinerr.Wrap("ipc.ControlClient.Send", "ipc", err)
	}
	var reply ControlMessage
	if err := json.Unmarshal(parts[len(parts)-1], &reply); err != nil {
		return ControlMessage{}, odinerr.Wrap("ipc.ControlClient.Send", "ipc", err)
	}
	return reply, nil
}

// Close releases the socket.
func (c *ControlClient) Close() error {
	return c.sock.Close()
}
