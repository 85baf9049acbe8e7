package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerFrameEncode(t *testing.T) {
	t.Run("omits empty fields", func(t *testing.T) {
		assert.JSONEq(t, `{"event":"joined","room_id":"r1"}`, string(joinedFrame("r1").encode()))
		assert.JSONEq(t, `{"event":"left","room_id":"r1"}`, string(leftFrame("r1").encode()))
	})

	t.Run("online users", func(t *testing.T) {
		f := onlineUsersFrame([]string{"a@example.com", "b@example.com"})
		assert.JSONEq(t, `{"event":"online_users","users":["a@example.com","b@example.com"]}`, string(f.encode()))
	})

	t.Run("error frames carry a code", func(t *testing.T) {
		for _, tc := range []struct {
			frame *ServerFrame
			code  int
		}{
			{errAuthRequired(), http.StatusUnauthorized},
			{errForbidden(), http.StatusForbidden},
			{errRoomNotFound(), http.StatusNotFound},
			{errInvalidFrame(), http.StatusBadRequest},
			{errInternal(), http.StatusInternalServerError},
		} {
			assert.Equal(t, EventError, tc.frame.Event)
			assert.Equal(t, tc.code, tc.frame.Code)
			assert.NotEmpty(t, tc.frame.Error)
		}
	})
}

func TestClientFrameDecode(t *testing.T) {
	var frame ClientFrame
	err := json.Unmarshal([]byte(`{"event":"chat_message","room_id":"r1","content":"hi"}`), &frame)
	assert.NoError(t, err)
	assert.Equal(t, EventChatMessage, frame.Event)
	assert.Equal(t, "r1", frame.RoomID)
	assert.Equal(t, "hi", frame.Content)
}
