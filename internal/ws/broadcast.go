package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mathquest/backend/internal/achievement"
	"github.com/mathquest/backend/internal/tracker"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// has been reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte

	// player limits delivery to one player's messages; empty receives all.
	player string
}

func newClient(b *Broadcaster, conn *websocket.Conn, player string) *client {
	c := &client{
		conn:   conn,
		b:      b,
		send:   make(chan []byte, sendBuffer),
		player: player,
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

func (c *client) wants(player string) bool {
	return c.player == "" || c.player == player
}

// Broadcaster fans notifications out to websocket clients. Clients that
// cannot keep up are disconnected rather than allowed to block others.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	badges   *achievement.Engine
}

// NewBroadcaster creates a broadcaster. maxConns <= 0 means unlimited.
// badges is used to enrich achievement notifications and may be nil.
func NewBroadcaster(badges *achievement.Engine, maxConns int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		badges:   badges,
	}
}

// AddClient registers conn, optionally filtered to one player, and greets it.
func (b *Broadcaster) AddClient(conn *websocket.Conn, player string) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := newClient(b, conn, player)
	b.clients[c] = true

	hello := WSMessage{Type: MsgHello, Payload: HelloPayload{PlayerID: player, Clients: len(b.clients)}}
	data, _ := json.Marshal(hello)
	c.send <- data // fresh buffer, cannot block
	b.mu.Unlock()

	return c, nil
}

// RemoveClient unregisters c and closes its send channel. Sends only happen
// under b.mu, so nothing can write to the channel after it is closed.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// PublishOutcome broadcasts the notifications for one processed event. It
// matches tracker.OutcomeCallback.
func (b *Broadcaster) PublishOutcome(out tracker.Outcome) {
	for _, msg := range outcomeMessages(out, b.badges) {
		b.broadcast(out.PlayerID, msg)
	}
}

func (b *Broadcaster) broadcast(player string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		if !c.wants(player) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		// Client can't keep up, disconnect it
		log.Printf("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
