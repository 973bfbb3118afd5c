package ws

import (
	"context"
	"log"
	"sync"

	"chatgo/internal/domain"
	"chatgo/internal/event"
)

// MembershipChecker gates room admission. Implemented by the membership
// guard in the service layer.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// socket is the minimal transport surface the hub needs from a connection;
// *websocket.Conn satisfies it.
type socket interface {
	WriteJSON(v any) error
	Close() error
}

// Conn is one live connection with its identity resolved once at upgrade
// time. Writes are serialized; gorilla allows a single concurrent writer.
type Conn struct {
	sock socket
	user domain.Participant

	mu sync.Mutex
}

func newConn(sock socket, user domain.Participant) *Conn {
	return &Conn{sock: sock, user: user}
}

func (c *Conn) User() domain.Participant { return c.user }

func (c *Conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(v)
}

func (c *Conn) sendEvent(ev event.Event) error {
	env, err := event.Encode(ev)
	if err != nil {
		return err
	}
	return c.send(env)
}

func (c *Conn) Close() error { return c.sock.Close() }

// Hub maps chat ids to the set of live connections admitted to each room
// and fans events out to them. It is the only shared mutable structure in
// the real-time layer; all mutation happens under one mutex.
type Hub struct {
	guard MembershipChecker

	mu     sync.RWMutex
	rooms  map[int64]map[*Conn]struct{}
	joined map[*Conn]map[int64]struct{}
}

func NewHub(guard MembershipChecker) *Hub {
	return &Hub{
		guard:  guard,
		rooms:  make(map[int64]map[*Conn]struct{}),
		joined: make(map[*Conn]map[int64]struct{}),
	}
}

// Join admits the connection to the chat's room after a membership check.
// Non-members are refused silently; the live channel sends no denial
// payload, it only logs for operators.
func (h *Hub) Join(ctx context.Context, c *Conn, chatID int64) bool {
	ok, err := h.guard.IsMember(ctx, chatID, c.user.ID)
	if err != nil {
		log.Printf("ws: membership check for chat %d: %v", chatID, err)
		return false
	}
	if !ok {
		log.Printf("ws: join refused: user %d is not a member of chat %d", c.user.ID, chatID)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[*Conn]struct{})
	}
	h.rooms[chatID][c] = struct{}{}
	if h.joined[c] == nil {
		h.joined[c] = make(map[int64]struct{})
	}
	h.joined[c][chatID] = struct{}{}
	return true
}

// Leave removes the connection from the chat's room. Idempotent; safe to
// call for a connection that never joined.
func (h *Hub) Leave(c *Conn, chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, chatID)
}

func (h *Hub) leaveLocked(c *Conn, chatID int64) {
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if rooms, ok := h.joined[c]; ok {
		delete(rooms, chatID)
		if len(rooms) == 0 {
			delete(h.joined, c)
		}
	}
}

// Unregister drops the connection from every room it joined. Called on
// transport teardown so stale connections never accumulate.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID := range h.joined[c] {
		h.leaveLocked(c, chatID)
	}
	delete(h.joined, c)
}

// Broadcast delivers the event to every connection currently in the room,
// including the one that triggered it; clients dedup by message id. A
// failed write closes that connection only and never blocks the rest.
func (h *Hub) Broadcast(chatID int64, ev event.Event) {
	env, err := event.Encode(ev)
	if err != nil {
		log.Printf("ws: encode %s: %v", ev.Name(), err)
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[chatID]))
	for c := range h.rooms[chatID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(env); err != nil {
			c.Close()
			// removal happens when the conn's reader exits; a stale
			// entry until then is harmless
		}
	}
}

// RoomSize reports the number of live connections in a room.
func (h *Hub) RoomSize(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}
