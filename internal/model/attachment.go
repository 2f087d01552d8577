// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// Attachment 附件模型
// 对应数据库表 attachments
// 记录一条消息携带的文件元数据，文件本体存放在 Blob 存储中
// 附件记录在其父消息落库之后创建（需要消息 ID 作为外键），之后不可变
type Attachment struct {
	// ID 附件唯一标识，UUID 字符串
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// MessageID 所属消息ID，外键关联 messages.id
	MessageID string `gorm:"index;size:36;not null" json:"message_id"`

	// FileName 用户上传时的原始文件名
	FileName string `gorm:"size:255;not null" json:"file_name"`

	// FileType 上传时声明的 MIME 类型
	FileType string `gorm:"size:100;not null" json:"file_type"`

	// FileSize 文件字节数，上限 10 MiB
	FileSize int64 `gorm:"not null" json:"file_size"`

	// StoragePath Blob 存储中的路径
	// 形如 <userID>/<messageID>/<unix毫秒>.<后缀>
	StoragePath string `gorm:"size:500;not null" json:"storage_path"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachments"
}
