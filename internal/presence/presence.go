// Package presence derives a user's online/offline status from its set of
// active connections.
package presence

import (
	"hash/fnv"
	"sort"
	"sync"
)

const numShards = 32

type shard struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{} // identity -> active conn ids
}

// Tracker maps user identities to their active connection ids. A user is
// online iff the set is non-empty, which makes multiple simultaneous
// devices per identity correct by construction. State is sharded by
// identity to bound contention under concurrent connection churn.
type Tracker struct {
	shards [numShards]*shard
}

func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i] = &shard{users: make(map[string]map[string]struct{})}
	}
	return t
}

func (t *Tracker) shard(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return t.shards[h.Sum32()%numShards]
}

// MarkOnline adds a connection to the identity's set. Returns true when
// this is the identity's first active connection, i.e. the identity just
// transitioned from offline to online.
func (t *Tracker) MarkOnline(identity, connID string) bool {
	s := t.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.users[identity]
	if conns == nil {
		conns = make(map[string]struct{})
		s.users[identity] = conns
	}

	wasOnline := len(conns) > 0
	conns[connID] = struct{}{}
	return !wasOnline
}

// MarkOffline removes one connection from the identity's set. Other
// connections of the same identity are unaffected; the identity only
// transitions offline once its last connection is removed. Returns true
// when that transition happened on this call.
func (t *Tracker) MarkOffline(identity, connID string) bool {
	s := t.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[identity]
	if !ok {
		return false
	}

	if _, ok := conns[connID]; !ok {
		return false
	}

	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, identity)
		return true
	}

	return false
}

func (t *Tracker) IsOnline(identity string) bool {
	s := t.shard(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users[identity]) > 0
}

// OnlineUsers returns a sorted snapshot of all online identities. The
// snapshot is safe to iterate without holding any tracker lock.
func (t *Tracker) OnlineUsers() []string {
	users := make([]string, 0)
	for _, s := range t.shards {
		s.mu.RLock()
		for identity := range s.users {
			users = append(users, identity)
		}
		s.mu.RUnlock()
	}

	sort.Strings(users)
	return users
}
