package bus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageDevice(t *testing.T) {
	msg := &Message{Meta: map[string]string{"device": "mobile"}}
	require.Equal(t, "mobile", msg.Device())

	require.Empty(t, (&Message{}).Device())
	require.Empty(t, (&Message{Meta: map[string]string{}}).Device())
}

func TestMessageRoundTrip(t *testing.T) {
	raw := []byte(`{"id":"01J","subject":"COH:CAPTURE","kind":"2w","targets":["alice"],"meta":{"device":"mobile"},"body":{"action":"read"}}`)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "COH:CAPTURE", msg.Subject)
	require.Equal(t, TwoWay, msg.Kind)
	require.Equal(t, []string{"alice"}, msg.Targets)
	require.JSONEq(t, `{"action":"read"}`, string(msg.Body))
}

func TestNewReplyLinksToRequest(t *testing.T) {
	req := &Message{ID: "msg-1", Subject: "COH:GETLIVE", Kind: TwoWay}

	reply, err := NewReply(req, map[string]string{"hash": "abc"})
	require.NoError(t, err)
	require.Equal(t, Reply, reply.Kind)
	require.Equal(t, "COH:GETLIVE", reply.Subject)
	require.Equal(t, "msg-1", reply.ReplyTo)
	require.NotEmpty(t, reply.ID)
	require.NotEqual(t, req.ID, reply.ID)
	require.JSONEq(t, `{"hash":"abc"}`, string(reply.Body))
}

func TestNewReplyRejectsUnmarshalableBody(t *testing.T) {
	req := &Message{ID: "msg-1", Subject: "COH:GETLIVE", Kind: TwoWay}

	_, err := NewReply(req, make(chan int))
	require.Error(t, err)
}
