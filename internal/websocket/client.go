// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ai-chatbot-server/internal/chatview"
	"ai-chatbot-server/internal/service"
	"ai-chatbot-server/pkg/response"
)

// Client 表示一个 WebSocket 客户端连接
// 每个连接持有自己的会话视图，连接之间互不影响
type Client struct {
	hub    *Hub               // 所属的 Hub
	conn   *websocket.Conn    // WebSocket 连接
	send   chan []byte        // 发送消息的通道
	userID int64              // 用户ID
	view   *chatview.ChatView // 该连接绑定的会话视图
	once   sync.Once          // 保证 send 通道只关闭一次
}

// 连接配置常量
const (
	// 写超时时间
	writeWait = 10 * time.Second

	// 等待 Pong 响应的超时时间
	pongWait = 60 * time.Second

	// 发送 Ping 的间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小（1MB）
	maxMessageSize = 1024 * 1024
)

// NewClient 创建新的客户端并绑定视图
// 视图状态每次变化都会推送给该连接
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, view *chatview.ChatView) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		view:   view,
	}
	view.SetOnUpdate(c.pushState)
	return c
}

// ReadPump 读取 WebSocket 消息的 goroutine
// 每个客户端连接启动一个 ReadPump
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	// 每次收到 Pong，重置读取超时
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Printf("Failed to parse message: %v", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump 写入 WebSocket 消息的 goroutine
// 每个客户端连接启动一个 WritePump
func (c *Client) WritePump() {
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

// SendMessage 向客户端发送消息
func (c *Client) SendMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// 非阻塞发送，客户端处理不过来时丢弃
	select {
	case c.send <- data:
		return nil
	default:
		log.Printf("Client send buffer full, dropping message")
		return nil
	}
}

// pushState 把当前视图状态推送给客户端
func (c *Client) pushState() {
	c.SendMessage(NewMessage(TypeState, StateFromSnapshot(c.view.Snapshot())))
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeHeartbeat:
		c.SendMessage(NewMessage(TypePong, nil))

	case TypeChatSelect:
		var payload ChatSelectPayload
		if !c.decodePayload(msg, &payload) {
			return
		}
		if err := c.view.SelectChat(context.Background(), payload.ChatID); err != nil {
			c.sendError(err)
		}

	case TypeChatNew:
		c.view.NewChat()

	case TypeChatSend:
		var payload ChatSendPayload
		if !c.decodePayload(msg, &payload) {
			return
		}
		// 发送要等模型回复，放到单独的 goroutine 避免阻塞读循环
		// 重复发送由视图的发送锁挡住
		go func() {
			if err := c.view.Submit(context.Background(), payload.Content); err != nil {
				c.sendError(err)
			}
		}()

	case TypeChatDelete:
		var payload ChatDeletePayload
		if !c.decodePayload(msg, &payload) {
			return
		}
		if err := c.view.DeleteChat(context.Background(), payload.ChatID); err != nil {
			c.sendError(err)
		}

	case TypeModelChange:
		var payload ModelChangePayload
		if !c.decodePayload(msg, &payload) {
			return
		}
		if err := c.view.ChangeModel(context.Background(), payload.Model); err != nil {
			c.sendError(err)
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// decodePayload 把通用 Payload 解析成具体类型
func (c *Client) decodePayload(msg *Message, out interface{}) bool {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("Invalid %s payload: %v", msg.Type, err)
		return false
	}
	return true
}

// sendError 把业务错误转成错误消息推给客户端
func (c *Client) sendError(err error) {
	code := response.CodeInternalError
	switch {
	case errors.Is(err, chatview.ErrBusy):
		code = response.CodeBadRequest
	case errors.Is(err, service.ErrChatNotFound):
		code = response.CodeChatNotFound
	case errors.Is(err, service.ErrNoPermission):
		code = response.CodeForbidden
	default:
		var transportErr *service.TransportError
		if errors.As(err, &transportErr) {
			code = response.CodeInferenceFailed
		}
	}

	c.SendMessage(NewMessage(TypeError, &ErrorPayload{
		Code:    code,
		Message: err.Error(),
	}))
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
	})
}
