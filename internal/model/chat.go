// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// DefaultChatTitle 新会话在没有可用文本时的兜底标题
const DefaultChatTitle = "New Chat"

// TitleMaxLen 会话标题的最大长度（取首条消息的前 50 个字符）
const TitleMaxLen = 50

// Chat 会话模型
// 对应数据库表 chats
// 表示用户与 AI 的一次命名对话，类似聊天应用中的对话窗口
// 一个用户可以有多个会话，侧边栏按 updated_at 倒序展示
type Chat struct {
	// ID 会话唯一标识，UUID 字符串
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// UserID 会话所属用户，外键关联 users.id
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// Title 会话标题
	// 由首条用户消息的前 50 个字符生成，后续不自动变更
	Title string `gorm:"size:100;not null" json:"title"`

	// Model 会话绑定的模型标识（如 gpt-4-mini）
	// 可通过修改模型接口变更
	Model string `gorm:"size:50;not null" json:"model"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 最近活跃时间
	// 每次成功落库一条消息后被推进，侧边栏按它排序
	// 注意这里不用 autoUpdateTime，推进时机由业务层控制
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	// Messages 会话中的所有消息（一对多关系，级联删除）
	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}
