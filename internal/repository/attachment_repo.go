// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"

	"ai-chatbot-server/internal/model"
)

// AttachmentRepository 附件数据访问层
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建 AttachmentRepository 实例
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create 创建附件记录
// 在文件上传到 Blob 存储成功后调用
// 参数:
//   - ctx: 上下文
//   - attachment: 附件对象，ID 由调用方生成
//
// 返回:
//   - error: 数据库错误
func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

// GetByMessageID 获取消息的所有附件
// 参数:
//   - ctx: 上下文
//   - messageID: 消息ID
//
// 返回:
//   - []model.Attachment: 附件列表
//   - error: 数据库错误
func (r *AttachmentRepository) GetByMessageID(ctx context.Context, messageID string) ([]model.Attachment, error) {
	var attachments []model.Attachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}
