package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// OriginChecker 判断 WebSocket 握手的来源是否被允许
type OriginChecker func(origin string) bool

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeSubmission MessageType = "submission"
	MessageTypeConnected  MessageType = "connected"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType             `json:"type"`
	Event     *domain.SubmissionEvent `json:"event,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// Client 代表一个管理面板连接
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub 管理面板实时推送中心
//
// 实现 service.SubmissionListener，将投稿变更广播给所有已认证的管理连接。
// 连接只接收推送，客户端发送的内容被忽略。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
	metrics    *monitoring.Metrics
	upgrader   websocket.Upgrader
}

// NewHub 创建推送中心
//
// 参数:
//   - checkOrigin: 来源校验，与 HTTP 跨域策略保持一致；为 nil 时允许所有来源
//   - metrics: 记录当前连接数
//   - log: 日志器
func NewHub(checkOrigin OriginChecker, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        log,
		metrics:    metrics,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin
			if origin == "" || checkOrigin == nil {
				return true
			}
			return checkOrigin(origin)
		},
	}
	return h
}

// Run 启动Hub，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateAdminStreams(count)
			h.log.Info("admin stream registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("admin stream unregistered", zap.String("id", client.ID))
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateAdminStreams(count)

		case data := <-h.broadcast:
			h.broadcastAll(data)
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnSubmissionEvent 广播投稿变更，队列已满时丢弃
func (h *Hub) OnSubmissionEvent(event domain.SubmissionEvent) {
	data, err := json.Marshal(&Message{
		Type:      MessageTypeSubmission,
		Event:     &event,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("failed to marshal submission event", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping submission event",
			zap.String("type", string(event.Type)),
			zap.String("id", event.ID))
	}
}

// broadcastAll 向所有客户端广播消息
func (h *Hub) broadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.metrics.UpdateAdminStreams(0)
}

// ServeWS 升级为 WebSocket 连接，鉴权由路由上的管理员中间件完成
func (h *Hub) ServeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBuffer),
			hub:  h,
		}

		hello, _ := json.Marshal(&Message{Type: MessageTypeConnected, Timestamp: time.Now()})
		client.send <- hello

		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取并丢弃客户端消息，用于感知断开与 pong
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", zap.Error(err))
			}
			return
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
