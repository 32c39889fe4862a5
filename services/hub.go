package services

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"openduel/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Events pushed to clients.
const (
	EventMatchFound     = "matchFound"
	EventMatchTimeout   = "matchTimeout"
	EventGameMove       = "gameMove"
	EventOpponentLeft   = "opponentLeft"
	EventMatchAbandoned = "matchAbandoned"
	EventMatchInvite    = "matchInvite"
	EventInviteExpired  = "inviteExpired"
	EventInviteDeclined = "inviteDeclined"
	EventOnlinePlayers  = "onlinePlayers"
	EventPong           = "pong"
)

var errConnectionClosed = eris.New("connection closed")

// SocketListener receives connection lifecycle and client-originated actions.
type SocketListener interface {
	CancelSearch(playerID string) bool
	HandleDisconnect(playerID string)
}

// Hub is the presence directory: one live connection per player.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	listener   SocketListener
}

type Client struct {
	hub      *Hub
	socket   *websocket.Conn
	send     chan []byte
	identity models.Identity
	closed   bool // guarded by hub.mutex
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetListener must be called before Run.
func (h *Hub) SetListener(listener SocketListener) {
	h.listener = listener
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (c *Client) PlayerID() string {
	return c.identity.PlayerID
}

func (c *Client) Identity() models.Identity {
	return c.identity
}

// Resolve returns the player's live connection.
func (h *Hub) Resolve(playerID string) (*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, ok := h.clients[playerID]
	if !ok || client.closed {
		return nil, false
	}
	return client, true
}

// Send queues one event on the client's connection. Events sent to the same
// client are written in Send order. A client whose buffer is full is dropped.
func (h *Hub) Send(client *Client, event string, payload interface{}) error {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		return eris.Wrapf(err, "failed to marshal %s", event)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if client.closed {
		return errConnectionClosed
	}
	select {
	case client.send <- data:
		return nil
	default:
		log.Warn().Str("player_id", client.PlayerID()).Str("event", event).Msg("send buffer full, closing connection")
		client.closeLocked()
		return errConnectionClosed
	}
}

// Broadcast sends the event to every connected client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		if err := h.Send(client, event, payload); err != nil {
			log.Debug().Err(err).Str("player_id", client.PlayerID()).Str("event", event).Msg("broadcast skipped client")
		}
	}
}

func (h *Hub) OnlinePlayers() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id, client := range h.clients {
		if !client.closed {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *Hub) RegisterClient(conn *websocket.Conn, identity models.Identity) *Client {
	client := h.newClient(conn, identity)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) newClient(conn *websocket.Conn, identity models.Identity) *Client {
	return &Client{
		hub:      h,
		socket:   conn,
		send:     make(chan []byte, sendBufferSize),
		identity: identity,
	}
}

func (h *Hub) add(client *Client) {
	h.mutex.Lock()
	if previous, ok := h.clients[client.PlayerID()]; ok && previous != client {
		// A newer connection replaces the old one; the old socket winds down on its own.
		previous.closeLocked()
	}
	h.clients[client.PlayerID()] = client
	total := len(h.clients)
	h.mutex.Unlock()

	log.Info().Str("player_id", client.PlayerID()).Int("clients", total).Msg("client registered")
	h.Broadcast(EventOnlinePlayers, h.OnlinePlayers())
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	current, ok := h.clients[client.PlayerID()]
	client.closeLocked()
	if !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.PlayerID())
	total := len(h.clients)
	h.mutex.Unlock()

	log.Info().Str("player_id", client.PlayerID()).Int("clients", total).Msg("client unregistered")

	if h.listener != nil {
		h.listener.HandleDisconnect(client.PlayerID())
	}
	h.Broadcast(EventOnlinePlayers, h.OnlinePlayers())
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, client := range h.clients {
		client.closeLocked()
		delete(h.clients, id)
	}
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("player_id", c.PlayerID()).Msg("websocket read error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("player_id", c.PlayerID()).Msg("malformed client message")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer func() {
		c.socket.Close()
	}()

	for message := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		if err := c.hub.Send(c, EventPong, "pong"); err != nil {
			log.Debug().Err(err).Str("player_id", c.PlayerID()).Msg("failed to answer ping")
		}

	case "cancelSearch":
		if c.hub.listener != nil {
			c.hub.listener.CancelSearch(c.PlayerID())
		}

	default:
		log.Debug().Str("type", msg.Type).Str("player_id", c.PlayerID()).Msg("unknown message type")
	}
}
