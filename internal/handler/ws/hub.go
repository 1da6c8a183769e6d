package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
	"CoinTrack/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is what clients send. Only "search" is understood.
type Message struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

type client struct {
	send chan models.View
}

// Hub is a Renderer that pushes every view to connected websocket clients.
// Clients that fall behind are disconnected rather than slowing renders.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	current func() models.View
	onInput func(query string)
	now     func() time.Time
	logger  *logger.Logger
}

var _ domrepo.Renderer = (*Hub)(nil)

// NewHub creates a hub. current, when set, supplies the view sent to a client
// right after it connects.
func NewHub(current func() models.View, l *logger.Logger) *Hub {
	if l == nil {
		l = logger.Nop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		current: current,
		now:     time.Now,
		logger:  l,
	}
}

// OnInput routes client search messages to fn.
func (h *Hub) OnInput(fn func(query string)) {
	h.mu.Lock()
	h.onInput = fn
	h.mu.Unlock()
}

func (h *Hub) Render(assets []models.Asset) {
	h.broadcast(models.View{Kind: models.ViewList, Assets: assets})
}

func (h *Hub) RenderEmpty() {
	h.broadcast(models.View{Kind: models.ViewEmpty})
}

func (h *Hub) RenderError(message string) {
	h.broadcast(models.View{Kind: models.ViewError, Message: message})
}

func (h *Hub) broadcast(v models.View) {
	v.UpdatedAt = h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			h.logger.Warn("ws client too slow, dropping")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Serve upgrades the request and streams views until the client leaves.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", logger.Error(err))
		return nil
	}

	cl := &client{send: make(chan models.View, sendBuffer)}
	if h.current != nil {
		cl.send <- h.current()
	}
	h.register(cl)

	go h.writePump(conn, cl)
	h.readPump(conn, cl)
	return nil
}

func (h *Hub) readPump(conn *websocket.Conn, cl *client) {
	defer func() {
		h.unregister(cl)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read", logger.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "search" {
			continue
		}
		h.mu.Lock()
		fn := h.onInput
		h.mu.Unlock()
		if fn != nil {
			fn(msg.Query)
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case v, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
