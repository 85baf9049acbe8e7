package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkOnline(t *testing.T) {
	t.Run("first connection brings user online", func(t *testing.T) {
		tr := NewTracker()

		assert.False(t, tr.IsOnline("a@example.com"))
		assert.True(t, tr.MarkOnline("a@example.com", "c1"), "first connection is the offline to online transition")
		assert.True(t, tr.IsOnline("a@example.com"))
	})

	t.Run("second connection is not a transition", func(t *testing.T) {
		tr := NewTracker()
		assert.True(t, tr.MarkOnline("a@example.com", "c1"))
		assert.False(t, tr.MarkOnline("a@example.com", "c2"))
	})

	t.Run("duplicate connection id is a no-op", func(t *testing.T) {
		tr := NewTracker()
		assert.True(t, tr.MarkOnline("a@example.com", "c1"))
		assert.False(t, tr.MarkOnline("a@example.com", "c1"))

		assert.True(t, tr.MarkOffline("a@example.com", "c1"))
		assert.False(t, tr.IsOnline("a@example.com"))
	})
}

func TestMultiDevice(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.MarkOnline("a@example.com", "c1"))
	assert.False(t, tr.MarkOnline("a@example.com", "c2"))
	assert.True(t, tr.IsOnline("a@example.com"))

	assert.False(t, tr.MarkOffline("a@example.com", "c1"), "user stays online while a second device is connected")
	assert.True(t, tr.IsOnline("a@example.com"))

	assert.True(t, tr.MarkOffline("a@example.com", "c2"), "last disconnect takes the user offline")
	assert.False(t, tr.IsOnline("a@example.com"))
}

func TestMarkOffline(t *testing.T) {
	t.Run("unknown user is a no-op", func(t *testing.T) {
		tr := NewTracker()
		assert.False(t, tr.MarkOffline("nobody@example.com", "c1"))
		assert.False(t, tr.IsOnline("nobody@example.com"))
	})

	t.Run("unknown connection leaves user online", func(t *testing.T) {
		tr := NewTracker()
		tr.MarkOnline("a@example.com", "c1")
		assert.False(t, tr.MarkOffline("a@example.com", "c9"))
		assert.True(t, tr.IsOnline("a@example.com"))
	})
}

func TestOnlineUsers(t *testing.T) {
	tr := NewTracker()

	assert.Empty(t, tr.OnlineUsers())

	tr.MarkOnline("b@example.com", "c1")
	tr.MarkOnline("a@example.com", "c2")
	tr.MarkOnline("a@example.com", "c3")
	tr.MarkOnline("c@example.com", "c4")
	tr.MarkOffline("c@example.com", "c4")

	users := tr.OnlineUsers()
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, users)

	// snapshot is detached from tracker state
	tr.MarkOffline("a@example.com", "c2")
	tr.MarkOffline("a@example.com", "c3")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, users)
}

func TestConcurrentChurn(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		identity := fmt.Sprintf("user-%d@example.com", i%10)
		connID := fmt.Sprintf("conn-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.MarkOnline(identity, connID)
			tr.IsOnline(identity)
			tr.OnlineUsers()
			tr.MarkOffline(identity, connID)
		}()
	}
	wg.Wait()

	assert.Empty(t, tr.OnlineUsers(), "every connection disconnected, nobody should remain online")
}
