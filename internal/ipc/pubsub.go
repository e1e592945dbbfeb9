package ipc

import (
	"encoding/json"

	"github.com/pebbe/zmq4"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Publisher wraps a PUB socket used for the frame-ready, frame-release and
// meta channels.
type Publisher struct {
	sock *zmq4.Socket
}

// NewPublisher binds a PUB socket at addr.
func NewPublisher(addr string) (*Publisher, error) {
	sock, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, odinerr.Wrap("ipc.NewPublisher", "ipc", err)
	}
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return nil, odinerr.Wrap("ipc.NewPublisher", "ipc", err)
	}
	return &Publisher{sock: sock}, nil
}

// PublishJSON sends a single JSON-encoded part under topic.
func (p *Publisher) PublishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return odinerr.Wrap("ipc.Publisher.PublishJSON", "ipc", err)
	}
	_, err = p.sock.SendMessage(topic, payload)
	if err != nil {
		return odinerr.Wrap("ipc.Publisher.PublishJSON", "ipc", err)
	}
	return nil
}

// PublishMeta sends the meta channel's two-part message: a JSON header
// followed by raw value bytes, matching the original implementation's
// two-frame meta-message format.
func (p *Publisher) PublishMeta(topic string, header any, value []byte) error {
	hdr, err := json.Marshal(header)
	if err != nil {
		return odinerr.Wrap("ipc.Publisher.PublishMeta", "ipc", err)
	}
	_, err = p.sock.SendMessage(topic, hdr, value)
	if err != nil {
		return odinerr.Wrap("ipc.Publisher.PublishMeta", "ipc", err)
	}
	return nil
}

// Close releases the socket.
func (p *Publisher) Close() error {
	return p.sock.Close()
}

// Subscriber wraps a SUB socket.
type Subscriber struct {
	sock *zmq4.Socket
}

// NewSubscriber connects a SUB socket to addr and subscribes to topic
// ("" subscribes to everything).
func NewSubscriber(addr, topic string) (*Subscriber, error) {
	sock, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, odinerr.Wrap("ipc.NewSubscriber", "ipc", err)
	}
	if err := sock.Connect(addr); err != nil {
		sock.Close()
		return nil, odinerr.Wrap("ipc.NewSubscriber", "ipc", err)
	}
	if err := sock.SetSubscribe(topic); err != nil {
		sock.Close()
		return nil, odinerr.Wrap("ipc.NewSubscriber", "ipc", err)
	}
	return &Subscriber{sock: sock}, nil
}

// RecvJSON receives a two-part message (topic, JSON payload) published by
// PublishJSON and unmarshals the payload into v.
func (s *Subscriber) RecvJSON(v any) (topic string, err error) {
	parts, rerr := s.sock.RecvMessageBytes(0)
	if rerr != nil {
		return "", odinerr.Wrap("ipc.Subscriber.RecvJSON", "ipc", rerr)
	}
	if len(parts) != 2 {
		return "", odinerr.New("ipc.Subscriber.RecvJSON", "ipc", odinerr.CodeDecoderError, "expected 2 message parts")
	}
	if err := json.Unmarshal(parts[1], v); err != nil {
		return "", odinerr.Wrap("ipc.Subscriber.RecvJSON", "ipc", err)
	}
	return string(parts[0]), nil
}

// RecvMeta receives one meta-channel message: topic, JSON header bytes,
// and raw value bytes.
func (s *Subscriber) RecvMeta() (topic string, header []byte, value []byte, err error) {
	parts, rerr := s.sock.RecvMessageBytes(0)
	if rerr != nil {
		return "", nil, nil, odinerr.Wrap("ipc.Subscriber.RecvMeta", "ipc", rerr)
	}
	if len(parts) != 3 {
		return "", nil, nil, odinerr.New("ipc.Subscriber.RecvMeta", "ipc", odinerr.CodeDecoderError, "expected 3 message parts")
	}
	return string(parts[0]), parts[1], parts[2], nil
}

// Close releases the socket.
func (s *Subscriber) Close() error {
	return s.sock.Close()
}
