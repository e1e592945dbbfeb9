package ipc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlServerClientRoundTrip(t *testing.T) {
	server, err := NewControlServer("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	endpoint, err := server.sock.GetLastEndpoint()
	require.NoError(t, err)

	client, err := NewControlClient(endpoint)
	require.NoError(t, err)
	defer client.Close()

	serverDone := make(chan error, 1)
	go func() {
		identity, msg, rerr := server.Recv()
		if rerr != nil {
			serverDone <- rerr
			return
		}
		if msg.MsgVal != "status" {
			serverDone <- fmt.Errorf("unexpected msg_val %q", msg.MsgVal)
			return
		}
		reply := ControlMessage{MsgType: "ack", MsgVal: msg.MsgVal, ID: msg.ID, Params: json.RawMessage(`{"ok":true}`)}
		serverDone <- server.Reply(identity, reply)
	}()

	reply, err := client.Send(ControlMessage{MsgType: "cmd", MsgVal: "status", ID: 7})
	require.NoError(t, err)
	require.NoError(t, <-serverDone)

	require.Equal(t, "ack", reply.MsgType)
	require.Equal(t, "status", reply.MsgVal)
	require.Equal(t, int64(7), reply.ID)
	require.JSONEq(t, `{"ok":true}`, string(reply.Params))
}
