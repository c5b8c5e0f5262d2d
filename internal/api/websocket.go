package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imf-phoenix/gadgetd/internal/gadget"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

// Frame types on the live feed.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameAck         = "ack"
	frameEvent       = "event"
	frameError       = "error"
)

const (
	// subscriberBuffer is the per-connection outbound queue length.
	subscriberBuffer = 64

	// allEvents subscribes to every lifecycle event type.
	allEvents = "*"

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// feedTimings returns the keepalive ping interval and the pong/write
// timeout, falling back to defaults for unset values.
func feedTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping, pong = defaultPingInterval, defaultPongTimeout
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

// frame is the JSON envelope of every live feed message in both directions.
//
// Client to server:
//
//	{"type":"subscribe","id":"1","events":["gadget.destroyed"],"gadgets":["<id>"]}
//	{"type":"unsubscribe","id":"2","gadgets":["<id>"]}
//	{"type":"ping","id":"3"}
//
// Server to client: ack (echoing the resulting subscription), event, pong
// and error.
type frame struct {
	Type    string        `json:"type"`
	ID      string        `json:"id,omitempty"`
	Events  []string      `json:"events,omitempty"`
	Gadgets []string      `json:"gadgets,omitempty"`
	Event   *gadget.Event `json:"event,omitempty"`
	Error   string        `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware and the ticket.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// subscriber is one live feed connection and its filter.
//
// send is never closed; the writer stops when the hub closes done.
type subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	done   chan struct{}

	mu      sync.Mutex
	events  map[string]struct{}
	gadgets map[string]struct{} // empty means every gadget
}

func newSubscriber(h *Hub, conn *websocket.Conn, userID string) *subscriber {
	return &subscriber{
		hub:     h,
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, subscriberBuffer),
		done:    make(chan struct{}),
		events:  make(map[string]struct{}),
		gadgets: make(map[string]struct{}),
	}
}

// handleWebSocket upgrades a ticketed request to a live feed connection.
// Tickets come from POST /auth/ws-ticket and work once.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		fail(w, http.StatusUnauthorized, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		fail(w, http.StatusUnauthorized, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "user_id", entry.userID)
		return
	}

	sub := newSubscriber(s.hub, conn, entry.userID)
	if !s.hub.add(sub) {
		//nolint:errcheck // shutting down
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go sub.writeLoop(s.wsCfg)
	go sub.readLoop(s.wsCfg)
}

// wants reports whether ev passes the subscriber's filter.
func (c *subscriber) wants(ev gadget.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, all := c.events[allEvents]
	_, typ := c.events[string(ev.Type)]
	if !all && !typ {
		return false
	}
	if len(c.gadgets) == 0 {
		return true
	}
	_, ok := c.gadgets[ev.GadgetID]
	return ok
}

// enqueue queues data without blocking. It reports false when the
// subscriber is gone or its queue is full.
func (c *subscriber) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *subscriber) reply(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *subscriber) replyError(id, message string) {
	c.reply(frame{Type: frameError, ID: id, Error: message})
}

// handleFrame applies one client frame.
func (c *subscriber) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch f.Type {
	case frameSubscribe, frameUnsubscribe:
		for _, ev := range f.Events {
			if !knownEvent(ev) {
				c.replyError(f.ID, "unknown event type: "+ev)
				return
			}
		}
		events, gadgets := c.update(f.Type == frameSubscribe, f.Events, f.Gadgets)
		if f.Type == frameSubscribe {
			c.hub.logger.Info("live feed subscription", "user_id", c.userID, "events", events, "gadgets", gadgets)
		}
		c.reply(frame{Type: frameAck, ID: f.ID, Events: events, Gadgets: gadgets})
	case framePing:
		c.reply(frame{Type: framePong, ID: f.ID})
	default:
		c.replyError(f.ID, "unknown message type: "+f.Type)
	}
}

// update adds or removes filter entries and returns the resulting filter.
// A subscribe that names no event types subscribes to all of them.
func (c *subscriber) update(add bool, events, gadgets []string) ([]string, []string) {
	if add && len(events) == 0 {
		events = []string{allEvents}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		if add {
			c.events[ev] = struct{}{}
		} else {
			delete(c.events, ev)
		}
	}
	for _, id := range gadgets {
		if add {
			c.gadgets[id] = struct{}{}
		} else {
			delete(c.gadgets, id)
		}
	}
	return sortedKeys(c.events), sortedKeys(c.gadgets)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func knownEvent(name string) bool {
	if name == allEvents {
		return true
	}
	return slices.ContainsFunc(gadget.AllEventTypes, func(t gadget.EventType) bool {
		return string(t) == name
	})
}

// readLoop consumes client frames until the connection fails.
func (c *subscriber) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	ping, pong := feedTimings(cfg)
	idle := ping + pong
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("live feed read failed", "error", err, "user_id", c.userID)
			}
			return
		}
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.conn.SetReadDeadline(time.Now().Add(idle))
		c.handleFrame(data)
	}
}

// writeLoop drains the queue and keeps the connection alive with pings.
func (c *subscriber) writeLoop(cfg config.WebSocketConfig) {
	interval, writeWait := feedTimings(cfg)
	ping := time.NewTicker(interval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			//nolint:errcheck // peer may already be gone
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
