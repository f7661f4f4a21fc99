package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"

	"Livestream/internal/event"
	"Livestream/internal/metrics"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// Subscriber is a connection that can be joined to rooms.
type Subscriber interface {
	ID() string
	UserID() string
	// TrySend enqueues ev without blocking and reports whether it was accepted.
	TrySend(ev event.WsEvent) bool
	Closed() bool
}

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]Subscriber
}

// Registry tracks which connections are joined to which rooms. Broadcast is
// fire-and-forget: a full or closed subscriber simply misses the event.
type Registry struct {
	shards [shardCount]*roomBucket

	// joined indexes rooms by connection for LeaveAll. Lock order: joinedMu, then a shard.
	joinedMu sync.Mutex
	joined   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{joined: make(map[string]map[string]struct{})}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]Subscriber),
		}
	}
	return r
}

func getShard(roomID string) uint32 {
	if roomID == "" {
		return 0
	}

	h := sha1.Sum([]byte(roomID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Join adds sub to roomID and reports whether it was not already a member.
// A closed subscriber is never added.
func (r *Registry) Join(sub Subscriber, roomID string) bool {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	if sub.Closed() {
		return false
	}

	b := r.shards[getShard(roomID)]
	b.Lock()
	room, ok := b.rooms[roomID]
	if !ok {
		room = make(map[string]Subscriber)
		b.rooms[roomID] = room
		metrics.ActiveRooms.Inc()
	}
	_, exists := room[sub.ID()]
	room[sub.ID()] = sub
	b.Unlock()

	rooms, ok := r.joined[sub.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[sub.ID()] = rooms
	}
	rooms[roomID] = struct{}{}

	return !exists
}

// Leave removes sub from roomID; leaving a room it never joined is a no-op.
func (r *Registry) Leave(sub Subscriber, roomID string) bool {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	if rooms, ok := r.joined[sub.ID()]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, sub.ID())
		}
	}
	return r.removeFromRoom(sub.ID(), roomID)
}

func (r *Registry) removeFromRoom(connID, roomID string) bool {
	b := r.shards[getShard(roomID)]
	b.Lock()
	defer b.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := room[connID]; !exists {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(b.rooms, roomID)
		metrics.ActiveRooms.Dec()
	}
	return true
}

// LeaveAll removes sub from every room and returns the rooms it left.
func (r *Registry) LeaveAll(sub Subscriber) []string {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	rooms := r.joined[sub.ID()]
	delete(r.joined, sub.ID())

	left := make([]string, 0, len(rooms))
	for roomID := range rooms {
		if r.removeFromRoom(sub.ID(), roomID) {
			left = append(left, roomID)
		}
	}
	return left
}

// RoomsOf lists the rooms a connection is joined to.
func (r *Registry) RoomsOf(connID string) []string {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	out := make([]string, 0, len(r.joined[connID]))
	for roomID := range r.joined[connID] {
		out = append(out, roomID)
	}
	return out
}

// Members snapshots the subscribers of roomID.
func (r *Registry) Members(roomID string) []Subscriber {
	b := r.shards[getShard(roomID)]

	// collect subscribers while holding RLock
	b.RLock()
	defer b.RUnlock()
	room := b.rooms[roomID]
	out := make([]Subscriber, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}

// Broadcast delivers ev to every subscriber of roomID at call time and
// returns the number of accepted deliveries.
func (r *Registry) Broadcast(roomID string, ev event.WsEvent) int {
	return r.BroadcastExcept(roomID, "", ev)
}

// BroadcastExcept is Broadcast skipping the connection exceptID.
func (r *Registry) BroadcastExcept(roomID, exceptID string, ev event.WsEvent) int {
	delivered := 0
	// deliver without holding the shard lock
	for _, s := range r.Members(roomID) {
		if s.ID() == exceptID {
			continue
		}
		if s.TrySend(ev) {
			delivered++
			metrics.Deliveries.WithLabelValues("delivered").Inc()
		} else {
			metrics.Deliveries.WithLabelValues("dropped").Inc()
		}
	}
	return delivered
}

// JoinUser joins every connection of userID, found through its personal
// room, to roomID.
func (r *Registry) JoinUser(userID, roomID string) int {
	joined := 0
	for _, s := range r.Members(event.UserRoom(userID)) {
		if r.Join(s, roomID) {
			joined++
		}
	}
	return joined
}

// RoomSnapshot is a point-in-time view of one room.
type RoomSnapshot struct {
	RoomID      string
	Subscribers []Subscriber
}

// Snapshot walks every shard and returns all non-empty rooms.
func (r *Registry) Snapshot() []RoomSnapshot {
	out := make([]RoomSnapshot, 0)
	for _, bucket := range r.shards {
		bucket.RLock()
		for roomID, room := range bucket.rooms {
			subs := make([]Subscriber, 0, len(room))
			for _, s := range room {
				subs = append(subs, s)
			}
			out = append(out, RoomSnapshot{RoomID: roomID, Subscribers: subs})
		}
		bucket.RUnlock()
	}
	return out
}
