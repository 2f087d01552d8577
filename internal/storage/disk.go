// Package storage 提供附件文件的 Blob 存储
// 存储路径按 <userID>/<messageID>/<unix毫秒>.<后缀> 组织，
// 路径作为附件记录的指针写入数据库
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore Blob 存储接口
// 接收原始字节，返回存储路径
type BlobStore interface {
	// Save 保存一个文件，返回其存储路径
	Save(ctx context.Context, userID int64, messageID, fileName string, content io.Reader) (string, error)
	// Remove 删除一个会话下的所有文件，尽力而为
	RemoveMessageFiles(userID int64, messageID string) error
}

// DiskStore 本地磁盘实现的 Blob 存储
type DiskStore struct {
	root string
}

// NewDiskStore 创建 DiskStore，root 不存在时自动创建
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root 返回存储根目录
func (s *DiskStore) Root() string {
	return s.root
}

// Save 保存一个文件
// 参数:
//   - ctx: 上下文（写入本身不可中断，仅在开始前检查取消）
//   - userID: 文件所属用户ID
//   - messageID: 文件所属消息ID
//   - fileName: 原始文件名，仅用于提取后缀
//   - content: 文件内容
//
// 返回:
//   - string: 相对于存储根目录的路径
//   - error: 写入错误
func (s *DiskStore) Save(ctx context.Context, userID int64, messageID, fileName string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := sanitizeExt(filepath.Ext(fileName))
	rel := filepath.Join(
		fmt.Sprintf("%d", userID),
		messageID,
		fmt.Sprintf("%d%s", time.Now().UnixMilli(), ext),
	)
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment dir: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(abs)
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(abs)
		return "", err
	}

	// 路径统一用正斜杠，与数据库记录和前端 URL 保持一致
	return filepath.ToSlash(rel), nil
}

// RemoveMessageFiles 删除一条消息的所有附件文件
// 会话删除时尽力清理，失败只会留下孤儿文件，不影响删除本身
func (s *DiskStore) RemoveMessageFiles(userID int64, messageID string) error {
	dir := filepath.Join(s.root, fmt.Sprintf("%d", userID), messageID)
	return os.RemoveAll(dir)
}

// sanitizeExt 清理文件后缀，防止路径穿越
func sanitizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.ContainsAny(ext, `/\`) || strings.Contains(ext, "..") {
		return ""
	}
	return ext
}
