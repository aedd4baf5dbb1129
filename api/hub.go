package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trade-sim-go/infrastructure/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Event 推送给前端的一条事件。
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Ts      time.Time   `json:"ts"`
}

// Hub 管理全部 WebSocket 客户端并向其广播状态事件。
type Hub struct {
	upgrader  websocket.Upgrader
	mu        sync.RWMutex
	clients   map[string]*client
	onConnect func() (string, interface{})
	log       *logger.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub 创建 Hub。本地单用户工具，跨域直接放行。
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		log:     log,
	}
}

// SetOnConnect 注册新客户端接入时发送的初始事件（完整状态快照），
// 之后客户端只收增量事件。
func (h *Hub) SetOnConnect(fn func() (string, interface{})) {
	h.mu.Lock()
	h.onConnect = fn
	h.mu.Unlock()
}

// Broadcast 向所有客户端推送事件。慢客户端丢帧，不阻塞广播方。
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload, Ts: time.Now()})
	if err != nil {
		h.log.Error("encode event failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount 当前连接数。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS 升级连接并启动读写泵。
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	h.mu.Lock()
	h.clients[c.id] = c
	onConnect := h.onConnect
	h.mu.Unlock()
	h.log.Info("websocket client connected", zap.String("client_id", c.id))

	if onConnect != nil {
		eventType, payload := onConnect()
		if data, err := json.Marshal(Event{Type: eventType, Payload: payload, Ts: time.Now()}); err == nil {
			c.send <- data
		}
	}

	go c.writePump()
	go c.readPump()
}

// Close 关闭所有连接。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

func (c *client) drop() {
	c.hub.mu.Lock()
	if _, ok := c.hub.clients[c.id]; ok {
		delete(c.hub.clients, c.id)
		close(c.send)
	}
	c.hub.mu.Unlock()
	_ = c.conn.Close()
}

// readPump 只消费控制帧与客户端心跳，收到任何错误即断开。
func (c *client) readPump() {
	defer c.drop()
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

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
