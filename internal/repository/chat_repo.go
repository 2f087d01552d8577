// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ai-chatbot-server/internal/model"
)

// ChatRepository 会话数据访问层
// 负责会话相关的所有数据库操作
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create 创建新会话
// 参数:
//   - ctx: 上下文
//   - chat: 会话对象，ID 由调用方生成，时间字段会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// GetByID 根据 ID 获取会话
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//
// 返回:
//   - *model.Chat: 会话对象，未找到返回 nil
//   - error: 数据库错误
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// GetByIDWithMessages 根据 ID 获取会话及其所有消息
// 用于加载会话历史
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//
// 返回:
//   - *model.Chat: 包含 Messages 字段的会话对象，消息按时间正序
//   - error: 数据库错误
func (r *ChatRepository) GetByIDWithMessages(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	// Preload 预加载消息，并按创建时间排序
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC") // 按时间正序，最早的在前
		}).
		Where("id = ?", id).
		First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// GetByUserID 获取用户的所有会话
// 侧边栏展示使用，按最近活跃时间倒序（最新的在前）
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []model.Chat: 会话列表，按 updated_at 倒序
//   - error: 数据库错误
func (r *ChatRepository) GetByUserID(ctx context.Context, userID int64) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

// UpdateModel 更新会话绑定的模型标识
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//   - modelID: 新的模型标识
//
// 返回:
//   - error: 数据库错误
func (r *ChatRepository) UpdateModel(ctx context.Context, id, modelID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ?", id).
		Update("model", modelID).Error
}

// Touch 推进会话的最近活跃时间
// 每次成功落库一条消息后调用
// updated_at 只向前推进，并发写入时以最后一次提交为准
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//   - at: 新的活跃时间
//
// 返回:
//   - error: 数据库错误
func (r *ChatRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Where("id = ? AND updated_at <= ?", id, at).
		Update("updated_at", at).Error
}

// Delete 删除会话
// 注意: 会级联删除关联的所有消息和附件记录
// 参数:
//   - ctx: 上下文
//   - id: 会话ID
//
// 返回:
//   - error: 数据库错误
func (r *ChatRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Chat{}).Error
}

// CountByUserID 统计用户的会话数量
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - int64: 会话数量
//   - error: 数据库错误
func (r *ChatRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Chat{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
