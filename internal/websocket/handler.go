// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ai-chatbot-server/internal/chatview"
	"ai-chatbot-server/internal/notifier"
	"ai-chatbot-server/internal/service"
	"ai-chatbot-server/internal/upload"
	pkgJwt "ai-chatbot-server/pkg/jwt"
	"ai-chatbot-server/pkg/response"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 处理 WebSocket 连接
type Handler struct {
	hub          *Hub
	chatService  *service.ChatService
	bus          *notifier.Bus
	policy       upload.Policy
	defaultModel string
	jwtSecret    string
}

// NewHandler 创建 WebSocket Handler
func NewHandler(
	hub *Hub,
	chatService *service.ChatService,
	bus *notifier.Bus,
	policy upload.Policy,
	defaultModel string,
	jwtSecret string,
) *Handler {
	return &Handler{
		hub:          hub,
		chatService:  chatService,
		bus:          bus,
		policy:       policy,
		defaultModel: defaultModel,
		jwtSecret:    jwtSecret,
	}
}

// HandleChatWS 处理会话 WebSocket 连接
// 路由: GET /ws/chat
// 参数: token (query parameter) - JWT token
func (h *Handler) HandleChatWS(c *gin.Context) {
	// 从 query 参数获取 token
	// 浏览器的 WebSocket API 不支持自定义请求头
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "需要认证 token")
		return
	}

	claims, err := pkgJwt.ParseUserToken(token, h.jwtSecret)
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		return
	}

	// 升级 HTTP 连接为 WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	// 每个连接一个独立的会话视图
	view := chatview.New(claims.UserID, h.chatService, h.bus, h.policy, h.defaultModel)
	client := NewClient(h.hub, conn, claims.UserID, view)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	// 连接建立后先推一次会话列表
	go func() {
		if err := view.RefreshChats(context.Background()); err != nil {
			log.Printf("Failed to load chats for user %d: %v", claims.UserID, err)
		}
	}()

	log.Printf("Chat WebSocket connected: userID=%d", claims.UserID)
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不走认证中间件（token 在 query 中验证）
	ws := r.Group("/ws")
	{
		ws.GET("/chat", h.HandleChatWS)
	}
}
