package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/registry"
)

const (
	// writeTimeout is the deadline for a single write to the client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the outgoing message buffer depth.
	sendBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to the client.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Registry is the observer registry surface the hub needs.
type Registry interface {
	Attach(obs registry.Observer) []types.PhotoResult
	DetachObserver(obs registry.Observer) bool
}

// Hub serves the single websocket observer.
type Hub struct {
	reg Registry

	mu      sync.Mutex
	current *conn
	closed  bool
}

// New creates a Hub attaching connections to reg.
func New(reg Registry) *Hub {
	return &Hub{reg: reg}
}

// ServeHTTP upgrades the request, attaches the connection as the observer
// and blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := newConn(ws)
	prev, ok := h.attach(c)
	if !ok {
		ws.Close()
		return
	}
	if prev != nil {
		prev.shutdown()
		slog.Info("ws: observer replaced", "remote", r.RemoteAddr)
	} else {
		slog.Info("ws: observer attached", "remote", r.RemoteAddr)
	}

	go c.writePump()
	c.readPump()

	if h.release(c) {
		slog.Info("ws: observer detached", "remote", r.RemoteAddr)
	}
	c.shutdown()
}

// Count returns 1 while an observer connection is open, else 0.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return 0
	}
	return 1
}

// Close closes the current connection and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	c := h.current
	h.current = nil
	h.mu.Unlock()
	if c != nil {
		c.shutdown()
	}
}

// --- internal ---------------------------------------------------------------

// attach makes c the current connection and registers it as the observer
// in one step, so concurrent upgrades register in the order they become
// current. It reports false after Close. Lock order is hub, then registry.
func (h *Hub) attach(c *conn) (*conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	prev := h.current
	h.current = c
	h.reg.Attach(c)
	return prev, true
}

// release forgets c and detaches it unless a newer connection took over.
// It reports whether the registry was cleared.
func (h *Hub) release(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == c {
		h.current = nil
	}
	return h.reg.DetachObserver(c)
}

// conn is one websocket observer. Replay and Receive run under the registry
// lock and only enqueue; writePump does the I/O.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

// Replay implements registry.Observer.
func (c *conn) Replay(results []types.PhotoResult) {
	if results == nil {
		results = []types.PhotoResult{}
	}
	c.enqueue(Message{Event: "replay", Data: results})
}

// Receive implements registry.Observer.
func (c *conn) Receive(result types.PhotoResult) {
	c.enqueue(Message{Event: "photo", Data: result})
}

func (c *conn) enqueue(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("ws: marshal message", "event", m.Event, "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		// Slow reader: drop the connection rather than block the engine.
		slog.Warn("ws: observer send buffer full, closing connection", "buffer_cap", cap(c.send))
		c.shutdown()
	}
}

func (c *conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// writePump forwards queued messages and pings. It owns all writes.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump handles control frames and detects disconnects. Blocks until the
// connection closes.
func (c *conn) readPump() {
	defer c.ws.Close()
	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
