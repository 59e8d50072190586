package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/gobang-online/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound frames buffered per client before it is dropped as too slow.
	sendBufferSize = 256
)

// Message is an outbound frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type target int

const (
	toConn target = iota
	toAll
	toRoom
)

// envelope is one marshaled frame and the clients it goes to.
type envelope struct {
	target target
	key    string // connection id or room name
	except []string
	data   []byte
}

// Hub maintains the set of active clients and fans frames out to them. All
// client bookkeeping happens on the Run goroutine, so frames reach every
// client in the order the Broadcaster methods were called.
type Hub struct {
	// Registered clients, by connection id and by room name
	clients map[string]*Client
	rooms   map[string]map[*Client]bool

	// Outbound frames from the coordinator
	broadcast chan *envelope

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	coordinator service.Coordinator
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = logger
	}
}

// WithAllowedOrigins restricts upgrades to the listed origins (scheme and
// host, e.g. "https://example.com"). An empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make([]string, 0, len(origins))
		for _, o := range origins {
			allowed = append(allowed, strings.TrimRight(strings.ToLower(o), "/"))
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(allowed, strings.ToLower(origin))
		}
	}
}

// NewHub creates a new WebSocket hub. SetCoordinator must be called before
// the first connection is served.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With().Str("component", "hub").Logger()
	return h
}

// SetCoordinator wires the coordinator that handles inbound events. The
// coordinator itself needs the hub as its Broadcaster, hence the setter.
func (h *Hub) SetCoordinator(c service.Coordinator) {
	h.coordinator = c
}

// Run starts the hub's event loop. It returns when ctx is done, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// ServeWS upgrades the request and attaches a client for identity, affiliated
// with roomName ("" for the lobby) for its whole lifetime.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity, roomName string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("user", identity).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		id:       uuid.NewString(),
		identity: identity,
		room:     roomName,
	}

	// Register before OnConnect so the client sees the broadcasts of its
	// own arrival.
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	h.coordinator.OnConnect(r.Context(), client.info())

	go client.writePump()
	go client.readPump()
}

// Unicast sends one frame to a single connection.
func (h *Hub) Unicast(connID, event string, payload any) {
	h.enqueue(toConn, connID, event, payload, nil)
}

// BroadcastAll sends one frame to every connection except the listed ids.
func (h *Hub) BroadcastAll(event string, payload any, except ...string) {
	h.enqueue(toAll, "", event, payload, except)
}

// BroadcastRoom sends one frame to every connection affiliated with
// roomName except the listed ids.
func (h *Hub) BroadcastRoom(roomName, event string, payload any, except ...string) {
	h.enqueue(toRoom, roomName, event, payload, except)
}

func (h *Hub) enqueue(t target, key, event string, payload any, except []string) {
	data, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to marshal message")
		return
	}

	env := &envelope{target: t, key: key, except: except, data: data}
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

// registerClient adds a client to the hub and to its room.
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	if client.room != "" {
		if h.rooms[client.room] == nil {
			h.rooms[client.room] = make(map[*Client]bool)
		}
		h.rooms[client.room][client] = true
	}

	h.log.Debug().Str("conn", client.id).Str("user", client.identity).Str("room", client.room).
		Int("clients", len(h.clients)).Msg("client registered")
}

// unregisterClient removes a client and closes its send channel.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	close(client.send)

	if clients, ok := h.rooms[client.room]; ok {
		delete(clients, client)
		// Clean up empty rooms
		if len(clients) == 0 {
			delete(h.rooms, client.room)
		}
	}

	h.log.Debug().Str("conn", client.id).Str("user", client.identity).
		Int("clients", len(h.clients)).Msg("client unregistered")
}

// deliver queues env on every targeted client. A client whose buffer is full
// is dropped; its pumps then shut down and report the disconnect.
func (h *Hub) deliver(env *envelope) {
	switch env.target {
	case toConn:
		if client, ok := h.clients[env.key]; ok {
			h.push(client, env.data)
		}
	case toAll:
		for _, client := range h.clients {
			if !slices.Contains(env.except, client.id) {
				h.push(client, env.data)
			}
		}
	case toRoom:
		for client := range h.rooms[env.key] {
			if !slices.Contains(env.except, client.id) {
				h.push(client, env.data)
			}
		}
	}
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.Warn().Str("conn", client.id).Str("user", client.identity).Msg("send buffer full, dropping client")
		h.unregisterClient(client)
	}
}

// RoomFromRequest resolves the room a connection belongs to: the room query
// parameter, else the /room/<name> path of the page that opened the socket.
// An empty result means the lobby.
func RoomFromRequest(r *http.Request) string {
	if name := r.URL.Query().Get("room"); name != "" {
		return name
	}

	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	name, ok := strings.CutPrefix(u.Path, "/room/")
	if !ok {
		return ""
	}
	return strings.Trim(name, "/")
}
