package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cfchat/backend/internal/auth/jwt"
)

// AllPlayers 订阅全部玩家的事件
const AllPlayers = "*"

// Authorizer 校验运维令牌
type Authorizer interface {
	Authorize(token, scope string) (*jwt.Claims, error)
}

// SubscriberGauge 接收当前连接数
type SubscriberGauge interface {
	UpdateEventSubscribers(count int)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 非浏览器客户端
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// EventType 事件类型
type EventType string

const (
	EventWarning    EventType = "warning"
	EventMute       EventType = "mute"
	EventUnmute     EventType = "unmute"
	EventMail       EventType = "mail"
	EventMailRead   EventType = "mail_read"
	EventReload     EventType = "reload"
	EventSave       EventType = "save"
	EventAlert      EventType = "alert"
	EventPing       EventType = "ping"
	EventPong       EventType = "pong"
	EventSubscribe  EventType = "subscribe"
	EventUnsub      EventType = "unsubscribe"
	EventSubscribed EventType = "subscribed"
	EventError      EventType = "error"
)

// Event WebSocket 上传输的消息
type Event struct {
	Type      EventType       `json:"type"`
	Player    string          `json:"player,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 一个已认证的订阅连接
type Client struct {
	ID       string
	Operator string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	topics   map[string]bool
	mu       sync.RWMutex
	log      *zap.Logger
}

// Hub 管理所有订阅连接
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	topics         map[string]map[string]*Client // 玩家标识或 "*" -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Event
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	auth           Authorizer
	gauge          SubscriberGauge
}

// NewHub 创建事件 Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，为空时允许所有
//   - auth: 令牌校验，连接需要 events:read 权限
//   - log: 日志记录器，可为 nil
//
// 返回值:
//   - *Hub: 创建的 Hub 实例，需要调用 Run 才会分发事件
func NewHub(allowedOrigins []string, auth Authorizer, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		topics:         make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *Event, 256),
		done:           make(chan struct{}),
		log:            log,
		allowedOrigins: allowedOrigins,
		auth:           auth,
	}
}

// SetGauge 设置连接数指标
func (h *Hub) SetGauge(g SubscriberGauge) {
	h.gauge = g
}

// Run 启动 Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("event hub stopped")
			close(h.done)
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.updateGauge(count)
			h.log.Info("event subscriber registered", zap.String("id", client.ID), zap.String("operator", client.Operator))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				client.mu.RLock()
				for topic := range client.topics {
					h.removeFromTopicLocked(topic, client.ID)
				}
				client.mu.RUnlock()
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("event subscriber unregistered", zap.String("id", client.ID))
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.updateGauge(count)

		case event := <-h.broadcast:
			h.dispatch(event)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// Publish 发布一条事件，不会阻塞调用方；队列满时丢弃
func (h *Hub) Publish(eventType EventType, player uuid.UUID, data any) {
	event := &Event{Type: eventType, Timestamp: time.Now()}
	if player != uuid.Nil {
		event.Player = player.String()
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			h.log.Error("failed to marshal event data", zap.String("type", string(eventType)), zap.Error(err))
			return
		}
		event.Data = raw
	}

	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("event queue full, dropping event", zap.String("type", string(eventType)))
	}
}

// Subscribers 当前连接数
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dispatch 发给订阅了该玩家或全部玩家的连接
func (h *Hub) dispatch(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make(map[string]*Client)
	for id, c := range h.topics[AllPlayers] {
		targets[id] = c
	}
	if event.Player != "" {
		for id, c := range h.topics[event.Player] {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送 ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Event{Type: EventPing, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.topics = make(map[string]map[string]*Client)
	h.mu.Unlock()
	h.updateGauge(0)
}

func (h *Hub) updateGauge(count int) {
	if h.gauge != nil {
		h.gauge.UpdateEventSubscribers(count)
	}
}

func (h *Hub) removeFromTopicLocked(topic, clientID string) {
	if clients, ok := h.topics[topic]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// authenticateClient 认证客户端，令牌来自 token 参数或 Authorization 头
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	if h.auth == nil {
		return nil, errors.New("event feed disabled")
	}

	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.auth.Authorize(token, jwt.ScopeEvents)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:       uuid.NewString(),
		Operator: claims.Operator,
		topics:   make(map[string]bool),
		log:      h.log,
	}, nil
}

// HandleWebSocket 处理 WebSocket 连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Event
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Event) {
	switch msg.Type {
	case EventSubscribe:
		c.subscribe(msg.Player)
	case EventUnsub:
		c.unsubscribe(msg.Player)
	case EventPong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// subscribe 订阅一名玩家或 "*"
func (c *Client) subscribe(player string) {
	topic, ok := normalizeTopic(player)
	if !ok {
		c.sendError("player must be a uuid or \"*\"")
		return
	}

	c.mu.Lock()
	c.topics[topic] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.topics[topic] == nil {
		c.hub.topics[topic] = make(map[string]*Client)
	}
	c.hub.topics[topic][c.ID] = c
	c.hub.mu.Unlock()

	c.log.Info("subscribed to player events",
		zap.String("clientID", c.ID),
		zap.String("player", topic),
		zap.String("operator", c.Operator))

	c.sendMessage(&Event{
		Type:      EventSubscribed,
		Player:    topic,
		Timestamp: time.Now(),
	})
}

// unsubscribe 取消订阅
func (c *Client) unsubscribe(player string) {
	topic, ok := normalizeTopic(player)
	if !ok {
		return
	}

	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()

	c.hub.mu.Lock()
	c.hub.removeFromTopicLocked(topic, c.ID)
	c.hub.mu.Unlock()
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Event{
		Type:      EventError,
		Error:     errMsg,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Event) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}

func normalizeTopic(player string) (string, bool) {
	player = strings.TrimSpace(player)
	if player == AllPlayers {
		return AllPlayers, true
	}
	id, err := uuid.Parse(player)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
