// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
)

// Message 消息模型
// 对应数据库表 messages
// 存储会话中的每一条消息，创建后不可变
// 角色通常是 user/assistant 交替出现，但模型不强制：
// 推理调用失败时会留下一条没有回复的用户消息，这是合法状态
type Message struct {
	// ID 消息唯一标识，UUID 字符串
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// ChatID 所属会话ID，外键关联 chats.id
	ChatID string `gorm:"index;size:36;not null" json:"chat_id"`

	// Role 消息角色
	// user: 用户发送的消息
	// assistant: AI 助手的响应
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容
	// 使用 TEXT 类型存储，助手消息保存推理接口返回的原始文本
	Content string `gorm:"type:text;not null" json:"content"`

	// CreatedAt 消息创建时间，会话内按它正序排列
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Attachments 消息携带的附件（一对多关系，级联删除）
	Attachments []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
