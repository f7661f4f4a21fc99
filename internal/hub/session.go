package hub

import (
	"context"
	"encoding/json"
	"sync"

	"Livestream/internal/apperr"
	"Livestream/internal/event"
)

// Session is the per-connection context handed to handlers. It lives as long
// as the socket and is never persisted.
type Session struct {
	UserID string
	ConnID string

	mu    sync.RWMutex
	rooms map[string]struct{}
}

func NewSession(userID, connID string) *Session {
	return &Session{UserID: userID, ConnID: connID, rooms: make(map[string]struct{})}
}

// InRoom reports whether the session already joined roomID.
func (s *Session) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

func (s *Session) addRoom(roomID string) {
	s.mu.Lock()
	s.rooms[roomID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) removeRoom(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// Handler processes one inbound event. It performs store calls only; every
// transport side effect is returned in the Outcome and applied by the gateway.
type Handler func(ctx context.Context, s *Session, data json.RawMessage) (*Outcome, error)

// Delivery is a broadcast to a room, optionally skipping one connection.
type Delivery struct {
	RoomID     string
	ExceptConn string
	Event      event.WsEvent
}

// MemberJoin subscribes every live connection of a user to a room.
type MemberJoin struct {
	UserID string
	RoomID string
}

// Outcome collects the side effects of a handler in application order:
// joins, member joins, leaves, replies, broadcasts, then deferred work.
type Outcome struct {
	Joins       []string
	MemberJoins []MemberJoin
	Leaves      []string
	Replies     []event.WsEvent
	Broadcasts  []Delivery
	After       []func(ctx context.Context)
}

func (o *Outcome) Join(roomID string) *Outcome {
	o.Joins = append(o.Joins, roomID)
	return o
}

func (o *Outcome) JoinMember(userID, roomID string) *Outcome {
	o.MemberJoins = append(o.MemberJoins, MemberJoin{UserID: userID, RoomID: roomID})
	return o
}

func (o *Outcome) Leave(roomID string) *Outcome {
	o.Leaves = append(o.Leaves, roomID)
	return o
}

func (o *Outcome) Reply(name string, payload interface{}) *Outcome {
	o.Replies = append(o.Replies, event.MustNew(name, payload))
	return o
}

func (o *Outcome) Broadcast(roomID, name string, payload interface{}) *Outcome {
	return o.BroadcastExcept(roomID, "", name, payload)
}

func (o *Outcome) BroadcastExcept(roomID, exceptConn, name string, payload interface{}) *Outcome {
	o.Broadcasts = append(o.Broadcasts, Delivery{
		RoomID:     roomID,
		ExceptConn: exceptConn,
		Event:      event.MustNew(name, payload),
	})
	return o
}

// Then schedules fn to run after every delivery of the outcome.
func (o *Outcome) Then(fn func(ctx context.Context)) *Outcome {
	o.After = append(o.After, fn)
	return o
}

// decode unmarshals an inbound payload; a missing payload decodes to the zero value.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid payload", err)
	}
	return nil
}
