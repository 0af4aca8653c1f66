package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"netwatch/internal/metrics"
	"netwatch/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	clientBuffer   = 64
)

// Controller is the part of the monitor that WebSocket clients may drive.
type Controller interface {
	Start(interval time.Duration) error
	Stop()
	Status() models.MonitorStatus
}

// Command is a client frame such as {"type":"start-monitoring","interval":1000}.
type Command struct {
	Type     string `json:"type"`
	Interval int64  `json:"interval,omitempty"`
}

// Hub owns the WebSocket connections and relays every bus message to them.
type Hub struct {
	bus      *Bus
	ctrl     Controller
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(bus *Bus, ctrl Controller, logger *slog.Logger) *Hub {
	return &Hub{
		bus:  bus,
		ctrl: ctrl,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Run relays bus messages until ctx is done or the bus is closed.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.bus.Subscribe(0)
	defer sub.Close()
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("encode message", "topic", msg.Topic, "err", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "err", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	h.log.Info("client connected", "remote", r.RemoteAddr, "clients", n)

	h.sendTo(c, h.frame(TopicWelcome, map[string]string{"message": "connected to netwatch"}))
	h.sendTo(c, h.frame(TopicStatus, h.ctrl.Status()))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()
	for _, c := range slow {
		h.log.Warn("dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.WSClients.Set(float64(n))
	c.once.Do(func() { close(c.send) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// sendTo queues a frame for one client. Membership is checked under the lock
// so a removed client's closed channel is never written.
func (h *Hub) sendTo(c *client, data []byte) {
	if data == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) frame(topic string, payload any) []byte {
	data, err := json.Marshal(Message{Topic: topic, Payload: payload, TS: h.bus.clock.Now()})
	if err != nil {
		h.log.Error("encode frame", "topic", topic, "err", err)
		return nil
	}
	return data
}

func (h *Hub) handle(c *client, cmd Command) {
	switch cmd.Type {
	case "start-monitoring":
		interval, err := models.MillisToDuration(cmd.Interval)
		if err == nil && cmd.Interval == 0 {
			interval = time.Second
		}
		if err == nil {
			err = h.ctrl.Start(interval)
		}
		if err != nil {
			h.sendTo(c, h.frame(TopicError, map[string]string{"error": err.Error()}))
		}
	case "stop-monitoring":
		h.ctrl.Stop()
	default:
		h.sendTo(c, h.frame(TopicError, map[string]string{"error": "unknown command " + cmd.Type}))
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read", "err", err)
			}
			return
		}
		c.hub.handle(c, cmd)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
