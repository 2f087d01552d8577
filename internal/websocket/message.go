// Package websocket 提供 WebSocket 通信功能
// 浏览器端通过 WebSocket 操作会话视图，服务端实时推送视图状态
package websocket

import (
	"time"

	"ai-chatbot-server/internal/chatview"
	"ai-chatbot-server/internal/model"
	"ai-chatbot-server/internal/upload"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeHeartbeat   = "heartbeat"    // 心跳
	TypeChatSelect  = "chat:select"  // 切换会话
	TypeChatNew     = "chat:new"     // 新建会话
	TypeChatSend    = "chat:send"    // 发送消息
	TypeChatDelete  = "chat:delete"  // 删除会话
	TypeModelChange = "model:change" // 切换模型

	// 服务端 → 客户端
	TypeState = "state" // 视图状态推送
	TypeError = "error" // 错误消息
	TypePong  = "pong"  // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`                 // 消息类型
	Payload   interface{} `json:"payload"`              // 消息内容
	Timestamp int64       `json:"timestamp"`            // 时间戳（毫秒）
	MessageID string      `json:"message_id,omitempty"` // 消息ID，用于追踪
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ==================== Payload 类型定义 ====================

// ChatSelectPayload 切换会话 Payload
type ChatSelectPayload struct {
	ChatID string `json:"chat_id"` // 目标会话ID
}

// ChatSendPayload 发送消息 Payload
// 附件通过 HTTP 接口上传，WebSocket 只发送文本
type ChatSendPayload struct {
	Content string `json:"content"` // 消息内容
}

// ChatDeletePayload 删除会话 Payload
type ChatDeletePayload struct {
	ChatID string `json:"chat_id"` // 要删除的会话ID
}

// ModelChangePayload 切换模型 Payload
type ModelChangePayload struct {
	Model string `json:"model"` // 模型标识
}

// StatePayload 视图状态 Payload
// 视图每次变化都推送完整状态，客户端直接渲染
type StatePayload struct {
	ActiveChatID string            `json:"active_chat_id"`
	Model        string            `json:"model"`
	Chats        []model.Chat      `json:"chats"`
	Messages     []model.Message   `json:"messages"`
	PendingFiles []upload.FileInfo `json:"pending_files"`
	Sending      bool              `json:"sending"`
	Loading      bool              `json:"loading"`
}

// StateFromSnapshot 把视图快照转成推送 Payload
func StateFromSnapshot(s chatview.Snapshot) *StatePayload {
	return &StatePayload{
		ActiveChatID: s.ActiveChatID,
		Model:        s.Model,
		Chats:        s.Chats,
		Messages:     s.Messages,
		PendingFiles: s.PendingFiles,
		Sending:      s.Sending,
		Loading:      s.Loading,
	}
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}
