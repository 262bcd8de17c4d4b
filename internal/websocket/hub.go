// Package websocket fans event-log lines and catalog changes out to browser
// clients and carries editor traffic back to the server.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/strongdm/paramref/internal/eventlog"
)

// Event is one entry on the live stream. Lines coming from the event log
// keep their logfmt fields; structured emitters use Payload instead.
type Event struct {
	Time       string            `json:"time"`
	Event      string            `json:"event"`
	Fields     map[string]string `json:"fields,omitempty"`
	InstanceID string            `json:"instance_id,omitempty"`
	Seq        uint64            `json:"seq,omitempty"`
	StartedAt  string            `json:"started_at,omitempty"`
	UptimeSec  *int64            `json:"uptime_s,omitempty"`
	LastSeq    *uint64           `json:"last_seq,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

// ErrHubStopped is returned by sends after Run has exited.
var ErrHubStopped = errors.New("websocket hub stopped")

// Hub manages websocket client connections and broadcasts.
type Hub struct {
	clients    map[string]*client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	unicast    chan clientSend
	incoming   chan ClientMessage
	done       chan struct{}
	doneOnce   sync.Once
	mutex      sync.RWMutex

	buffer     *EventRingBuffer
	instanceID string
	seq        uint64
	startTime  time.Time

	// limits for the initial bulk send on new connections
	bulkMaxEvents int
	bulkMaxBytes  int

	hookMu       sync.RWMutex
	onDisconnect func(clientID string)
}

const (
	writeDeadline     = 5 * time.Second
	heartbeatInterval = 10 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = 30 * time.Second
	sendBuffer        = 256
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	hub     *Hub
	closed  chan struct{}
	closeMu sync.Mutex
}

type clientSend struct {
	clientID string
	payload  []byte
}

// ClientMessage is an inbound text frame from a websocket client.
type ClientMessage struct {
	ClientID string
	Payload  []byte
}

// NewHub creates a hub whose replay buffer holds bufferSize events. New
// connections receive at most bulkMaxEvents events and bulkMaxBytes bytes of
// history; zero disables the respective limit.
func NewHub(bufferSize, bulkMaxEvents, bulkMaxBytes int) *Hub {
	hub := &Hub{
		clients:       make(map[string]*client),
		broadcast:     make(chan []byte, 256),
		register:      make(chan *client),
		unregister:    make(chan *client),
		unicast:       make(chan clientSend, 128),
		incoming:      make(chan ClientMessage, 256),
		done:          make(chan struct{}),
		buffer:        NewEventRingBuffer(bufferSize),
		instanceID:    uuid.NewString(),
		startTime:     time.Now(),
		bulkMaxEvents: bulkMaxEvents,
		bulkMaxBytes:  bulkMaxBytes,
	}
	hub.emitHello()
	return hub
}

// OnDisconnect registers fn to run after a client is removed.
func (h *Hub) OnDisconnect(fn func(clientID string)) {
	h.hookMu.Lock()
	h.onDisconnect = fn
	h.hookMu.Unlock()
}

// Run services the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("websocket client connected (id=%s total=%d)", c.id, total)

		case c := <-h.unregister:
			h.removeClient(c.id)

		case message := <-h.broadcast:
			for _, c := range h.snapshotClients() {
				h.enqueue(c, message)
			}

		case msg := <-h.unicast:
			if c := h.getClient(msg.clientID); c != nil {
				h.enqueue(c, msg.payload)
			}

		case <-heartbeat.C:
			h.emitHeartbeat()
		}
	}
}

func (h *Hub) stop() {
	h.doneOnce.Do(func() { close(h.done) })
	h.mutex.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mutex.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) snapshotClients() []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) getClient(id string) *client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[id]
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// enqueue delivers payload without blocking. A full send buffer drops its
// oldest message so slow clients see the most recent state.
func (h *Hub) enqueue(c *client, payload []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	for {
		select {
		case c.send <- payload:
			return
		default:
		}
		select {
		case <-c.send:
			log.Printf("websocket: dropped oldest message for client %s (send buffer full)", c.id)
		default:
		}
	}
}

func (h *Hub) removeClient(id string) {
	h.mutex.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}
	c.close()
	log.Printf("websocket client disconnected (id=%s total=%d)", id, total)

	h.hookMu.RLock()
	fn := h.onDisconnect
	h.hookMu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

// history returns buffered events as NDJSON, bounded by the bulk limits.
func (h *Hub) history() ([]byte, int) {
	var events []Event
	if h.bulkMaxEvents > 0 {
		events = h.buffer.Tail(h.bulkMaxEvents)
	} else {
		events = h.buffer.All()
	}
	return encodeNDJSON(events, h.bulkMaxBytes)
}

// EmitJSON publishes a structured event with payload to all clients.
func (h *Hub) EmitJSON(event string, payload any) {
	if strings.TrimSpace(event) == "" {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal websocket payload for %s: %v", event, err)
			return
		}
		raw = data
	}
	h.emit(Event{Event: event, Payload: raw})
}

// BroadcastLog publishes one logfmt line. It satisfies eventlog.Broadcaster.
func (h *Hub) BroadcastLog(line string) {
	h.emit(eventFromLogfmt(line))
}

// Incoming returns the channel of raw messages from clients.
func (h *Hub) Incoming() <-chan ClientMessage {
	return h.incoming
}

// SendToClient queues payload for a single client.
func (h *Hub) SendToClient(clientID string, payload []byte) error {
	if clientID == "" {
		return fmt.Errorf("client id required")
	}
	if h.getClient(clientID) == nil {
		return fmt.Errorf("client %s not found", clientID)
	}
	select {
	case h.unicast <- clientSend{clientID: clientID, payload: payload}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// SendJSONToClient marshals v and sends it to a single client.
func (h *Hub) SendJSONToClient(clientID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToClient(clientID, data)
}

func (h *Hub) emit(entry Event) {
	if entry.Time == "" {
		entry.Time = time.Now().UTC().Format(time.RFC3339)
	}
	entry.InstanceID = h.instanceID
	entry.Seq = atomic.AddUint64(&h.seq, 1)

	h.buffer.Add(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// RecentEvents returns the newest buffered events. limit <= 0 returns all.
func (h *Hub) RecentEvents(limit int) []Event {
	if limit <= 0 {
		return h.buffer.All()
	}
	return h.buffer.Tail(limit)
}

func (h *Hub) emitHello() {
	h.emit(Event{
		Event:     "paramref.hello",
		StartedAt: h.startTime.UTC().Format(time.RFC3339),
	})
}

func (h *Hub) emitHeartbeat() {
	lastSeq := atomic.LoadUint64(&h.seq)
	uptime := int64(time.Since(h.startTime).Seconds())
	h.emit(Event{
		Event:     "paramref.heartbeat",
		UptimeSec: &uptime,
		LastSeq:   &lastSeq,
	})
}

// HandleWebSocket upgrades the request, sends the history bulk message and
// registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	// The first frame is always the bulk history, even when empty.
	bulk, included := h.history()
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteMessage(gws.TextMessage, bulk); err != nil {
		log.Printf("failed to send bulk message to client: %v", err)
		_ = conn.Close()
		return
	}
	log.Printf("sent bulk message with %d events (%d bytes) to new websocket client", included, len(bulk))

	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func newClient(h *Hub, conn *gws.Conn) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		closed: make(chan struct{}),
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseAbnormalClosure) {
				log.Printf("websocket read error (client %s): %v", c.id, err)
			}
			return
		}
		if msgType != gws.TextMessage {
			continue
		}
		select {
		case c.hub.incoming <- ClientMessage{ClientID: c.id, Payload: payload}:
		default:
			log.Printf("websocket: dropping inbound message from client %s, channel full", c.id)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

// eventFromLogfmt keeps time and event as top-level fields and the rest of
// the line under Fields.
func eventFromLogfmt(line string) Event {
	fields := eventlog.Parse(line)
	entry := Event{
		Time:  fields["time"],
		Event: fields["event"],
	}
	delete(fields, "time")
	delete(fields, "event")
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}
