// Package display streams engine frames to browsers over websockets.
package display

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/standings/internal/domain/director"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	clientBuffer   = 32
	broadcastSize  = 64
)

// FrameSource provides the frame a new client starts from.
type FrameSource interface {
	RenderFrame(ctx context.Context) (director.Frame, error)
}

// Client is one connected display.
type Client struct {
	conn *websocket.Conn
	send chan director.Frame
	// frames with Seq at or below after predate the client's render frame
	after uint64
}

// Hub fans frames out to every connected display. It implements
// director.Sink.
type Hub struct {
	source FrameSource
	log    logger.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan director.Frame
	done       chan struct{}
	count      atomic.Int64
}

// NewHub creates a hub. Call Run to start it.
func NewHub(source FrameSource, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		source:     source,
		log:        log.Named("display"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan director.Frame, broadcastSize),
		done:       make(chan struct{}),
	}
}

// Publish queues f for every client. It never blocks the engine; when the
// hub is behind the frame is dropped.
func (h *Hub) Publish(f director.Frame) {
	select {
	case h.broadcast <- f:
	default:
		metrics.RecordFrameDropped()
		h.log.Warn(context.Background(), "hub behind, frame dropped", logger.String("type", f.Type))
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			f, err := h.source.RenderFrame(ctx)
			if err != nil {
				h.log.Warn(ctx, "no initial frame for client", logger.Error(err))
				close(c.send)
				continue
			}
			h.clients[c] = true
			c.after = f.Seq
			c.send <- f
			metrics.RecordFrameSent(f.Type)
			h.setCount()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
			}

		case f := <-h.broadcast:
			for c := range h.clients {
				if f.Seq != 0 && f.Seq <= c.after {
					continue
				}
				select {
				case c.send <- f:
					metrics.RecordFrameSent(f.Type)
				default:
					// Slow client; drop it.
					delete(h.clients, c)
					close(c.send)
					metrics.RecordFrameDropped()
				}
			}
			h.setCount()
		}
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Clients returns the number of connected displays.
func (h *Hub) Clients() int { return int(h.count.Load()) }

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.UpdateDisplayClients(len(h.clients))
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.setCount()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	c := &Client{conn: conn, send: make(chan director.Frame, clientBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(h)
}

// readPump only watches for close and pong; displays send nothing.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
