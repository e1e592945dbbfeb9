package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type readyNotification struct {
	Frame    int64 `json:"frame"`
	BufferID int   `json:"buffer_id"`
}

func TestPublisherSubscriberRoundTripsJSON(t *testing.T) {
	pub, err := NewPublisher("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer pub.Close()

	endpoint, err := pub.sock.GetLastEndpoint()
	require.NoError(t, err)

	sub, err := NewSubscriber(endpoint, "frame_ready")
	require.NoError(t, err)
	defer sub.Close()

	// PUB/SUB has no handshake, so the subscriber can miss messages sent
	// before its subscription propagates; retry publishing until one lands.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var got readyNotification
		topic, rerr := sub.RecvJSON(&got)
		require.NoError(t, rerr)
		require.Equal(t, "frame_ready", topic)
		require.Equal(t, int64(42), got.Frame)
		require.Equal(t, 3, got.BufferID)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		err := pub.PublishJSON("frame_ready", readyNotification{Frame: 42, BufferID: 3})
		require.NoError(t, err)
		select {
		case <-done:
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("subscriber never received published message")
}

func TestPublisherSubscriberRoundTripsMeta(t *testing.T) {
	pub, err := NewPublisher("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer pub.Close()

	endpoint, err := pub.sock.GetLastEndpoint()
	require.NoError(t, err)

	sub, err := NewSubscriber(endpoint, "meta")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		topic, header, value, rerr := sub.RecvMeta()
		require.NoError(t, rerr)
		require.Equal(t, "meta", topic)
		require.JSONEq(t, `{"kind":"dataset_size"}`, string(header))
		require.Equal(t, []byte("payload"), value)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		err := pub.PublishMeta("meta", map[string]string{"kind": "dataset_size"}, []byte("payload"))
		require.NoError(t, err)
		select {
		case <-done:
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("subscriber never received published meta message")
}
