// internal/fabric/fabric.go
package fabric

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LobbyRoom names the multicast group shared by all members of a lobby.
func LobbyRoom(lobbyID uuid.UUID) string {
	return "lobby:" + lobbyID.String()
}

// UserRoom names a participant's private room for directed notices.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Fabric groups live connections into named rooms and fans events out to all
// members. Delivery is at-least-once per connected member, unordered between
// members; disconnected members receive nothing.
type Fabric struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}

	journal *Journal // optional; nil disables journaling
	log     *logrus.Logger
}

// New creates an empty fabric. journal may be nil.
func New(logger *logrus.Logger, journal *Journal) *Fabric {
	return &Fabric{
		rooms:   make(map[string]map[*Conn]struct{}),
		journal: journal,
		log:     logger,
	}
}

// Join adds a connection to a room, creating the room on first use.
func (f *Fabric) Join(room string, c *Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		f.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes a connection from a room, dropping the room when empty.
func (f *Fabric) Leave(room string, c *Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if members, ok := f.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(f.rooms, room)
		}
	}
}

// LeaveAll removes a connection from every room it belongs to and returns
// the rooms it was a member of. Called on transport disconnect; membership
// rows in the store are never mutated here.
func (f *Fabric) LeaveAll(c *Conn) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var left []string
	for room, members := range f.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			left = append(left, room)
			if len(members) == 0 {
				delete(f.rooms, room)
			}
		}
	}
	return left
}

// Publish fans msg out to every member of the room and appends it to the
// event journal. Local fan-out cannot fail; a journal failure is returned so
// the coordinator can degrade the ack to a warning. The state mutation the
// event describes has already committed by the time Publish runs.
func (f *Fabric) Publish(ctx context.Context, room string, msg map[string]interface{}) error {
	f.mu.RLock()
	conns := make([]*Conn, 0, len(f.rooms[room]))
	for c := range f.rooms[room] {
		conns = append(conns, c)
	}
	f.mu.RUnlock()

	for _, c := range conns {
		c.Write(msg)
	}

	if f.journal != nil {
		if err := f.journal.Append(ctx, room, msg); err != nil {
			f.log.WithFields(logrus.Fields{
				"room":  room,
				"error": err,
			}).Warn("event journal append failed")
			return err
		}
	}
	return nil
}

// PublishExcept fans msg out to every room member except one connection,
// mirroring the originator-excluding broadcasts of vote events.
func (f *Fabric) PublishExcept(ctx context.Context, room string, except *Conn, msg map[string]interface{}) error {
	f.mu.RLock()
	conns := make([]*Conn, 0, len(f.rooms[room]))
	for c := range f.rooms[room] {
		if c != except {
			conns = append(conns, c)
		}
	}
	f.mu.RUnlock()

	for _, c := range conns {
		c.Write(msg)
	}

	if f.journal != nil {
		return f.journal.Append(ctx, room, msg)
	}
	return nil
}

// Members returns the current member count of a room.
func (f *Fabric) Members(room string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms[room])
}
