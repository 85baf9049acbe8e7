package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientStateMachine(t *testing.T) {
	t.Run("authenticate from connecting", func(t *testing.T) {
		c := newTestClient(t, "c1")
		assert.Equal(t, StateConnecting, c.State())

		assert.True(t, c.authenticate("a@example.com"))
		assert.Equal(t, StateAuthenticated, c.State())
		assert.Equal(t, "a@example.com", c.Identity())
	})

	t.Run("authenticate is single-shot", func(t *testing.T) {
		c := newTestClient(t, "c1")
		assert.True(t, c.authenticate("a@example.com"))
		assert.False(t, c.authenticate("b@example.com"))
		assert.Equal(t, "a@example.com", c.Identity())
	})

	t.Run("closed is terminal", func(t *testing.T) {
		c := newTestClient(t, "c1")
		c.close()
		assert.Equal(t, StateClosed, c.State())
		assert.False(t, c.authenticate("a@example.com"))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := newTestClient(t, "c1")
		c.close()
		c.close()
		assert.Equal(t, StateClosed, c.State())
	})
}

func TestQueueFrame(t *testing.T) {
	t.Run("enqueues encoded frame", func(t *testing.T) {
		c := newTestClient(t, "c1")

		assert.True(t, c.queueFrame(joinedFrame("r1")))
		assert.JSONEq(t, `{"event":"joined","room_id":"r1"}`, string(<-c.send))
	})

	t.Run("drops when the queue is full", func(t *testing.T) {
		c := newTestClient(t, "c1")
		c.send = make(chan []byte, 1)

		assert.True(t, c.queueFrame(joinedFrame("r1")))
		assert.False(t, c.queueFrame(joinedFrame("r2")), "a full queue must not block the read pump")
	})
}
