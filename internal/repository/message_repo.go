// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"

	"ai-chatbot-server/internal/model"
)

// MessageRepository 消息数据访问层
// 消息是只追加的：只有创建和查询，没有更新
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建新消息
// 参数:
//   - ctx: 上下文
//   - message: 消息对象，ID 由调用方生成，CreatedAt 会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByChatID 获取会话的所有消息
// 按创建时间正序排列（最早的在前），方便展示对话
// 参数:
//   - ctx: 上下文
//   - chatID: 会话ID
//
// 返回:
//   - []model.Message: 消息列表
//   - error: 数据库错误
func (r *MessageRepository) GetByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// CountByChatID 统计会话的消息数量
// 参数:
//   - ctx: 上下文
//   - chatID: 会话ID
//
// 返回:
//   - int64: 消息数量
//   - error: 数据库错误
func (r *MessageRepository) CountByChatID(ctx context.Context, chatID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

// DeleteByChatID 删除会话的所有消息
// 数据库层已有级联删除，这里保留给没有外键约束的部署使用
// 参数:
//   - ctx: 上下文
//   - chatID: 会话ID
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) DeleteByChatID(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&model.Message{}).Error
}
