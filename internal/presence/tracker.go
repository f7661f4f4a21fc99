// Package presence maps each user to at most one active connection and keeps
// the user's online/lastSeen state.
package presence

import (
	"crypto/sha1"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"Livestream/internal/model"
)

// Tracker is implemented by the in-process MemoryTracker. A shared external
// store can satisfy the same interface for multi-instance deployments.
type Tracker interface {
	// Connect maps userID to connID. A newer connection replaces an older one.
	Connect(userID, connID string, at time.Time)
	// Disconnect clears the mapping only if it still points at connID and
	// reports whether it did.
	Disconnect(userID, connID string, at time.Time) bool
	Lookup(userID string) (string, bool)
	Status(userID string) model.Presence
	Online() []string
}

const shardCount = 32

type entry struct {
	connID   string
	online   bool
	lastSeen time.Time
}

type shard struct {
	sync.RWMutex
	users map[string]*entry
}

// MemoryTracker is a sharded, mutex-guarded Tracker.
type MemoryTracker struct {
	shards [shardCount]*shard
}

func NewMemoryTracker() *MemoryTracker {
	t := &MemoryTracker{}
	for i := range t.shards {
		t.shards[i] = &shard{users: make(map[string]*entry)}
	}
	return t
}

func (t *MemoryTracker) shardFor(userID string) *shard {
	h := sha1.Sum([]byte(userID))
	return t.shards[binary.BigEndian.Uint32(h[:4])%shardCount]
}

func (t *MemoryTracker) Connect(userID, connID string, at time.Time) {
	s := t.shardFor(userID)
	s.Lock()
	defer s.Unlock()
	s.users[userID] = &entry{connID: connID, online: true, lastSeen: at}
}

func (t *MemoryTracker) Disconnect(userID, connID string, at time.Time) bool {
	s := t.shardFor(userID)
	s.Lock()
	defer s.Unlock()

	e, ok := s.users[userID]
	if !ok || !e.online || e.connID != connID {
		return false
	}
	e.connID = ""
	e.online = false
	e.lastSeen = at
	return true
}

func (t *MemoryTracker) Lookup(userID string) (string, bool) {
	s := t.shardFor(userID)
	s.RLock()
	defer s.RUnlock()

	e, ok := s.users[userID]
	if !ok || !e.online {
		return "", false
	}
	return e.connID, true
}

func (t *MemoryTracker) Status(userID string) model.Presence {
	s := t.shardFor(userID)
	s.RLock()
	defer s.RUnlock()

	p := model.Presence{UserID: userID}
	if e, ok := s.users[userID]; ok {
		p.Online = e.online
		p.LastSeen = e.lastSeen
	}
	return p
}

// Online lists the users with an active connection, sorted.
func (t *MemoryTracker) Online() []string {
	out := make([]string, 0)
	for _, s := range t.shards {
		s.RLock()
		for id, e := range s.users {
			if e.online {
				out = append(out, id)
			}
		}
		s.RUnlock()
	}
	sort.Strings(out)
	return out
}
