// Package upload 提供附件的准入校验和待发送集合管理
// 校验是纯函数：逐个文件给出接受或带原因的拒绝，互不影响
package upload

import (
	"io"
	"strings"
)

// Reason 拒绝原因标签
type Reason string

const (
	ReasonTooLarge        Reason = "too_large"        // 超过大小上限
	ReasonUnsupportedType Reason = "unsupported_type" // MIME 类型不在允许范围
)

// DefaultMaxFileSize 默认的单文件大小上限（10 MiB）
const DefaultMaxFileSize = 10 * 1024 * 1024

// FileInfo 候选文件的元数据
type FileInfo struct {
	Name string `json:"name"` // 原始文件名
	Type string `json:"type"` // 声明的 MIME 类型
	Size int64  `json:"size"` // 字节数
}

// File 一个候选附件：元数据 + 内容读取器
type File struct {
	FileInfo
	Content io.Reader `json:"-"`
}

// Rejection 单个文件的拒绝结果
type Rejection struct {
	FileInfo
	Reason Reason `json:"reason"`
}

// Policy 附件准入策略
type Policy struct {
	// MaxFileSize 单文件大小上限（字节）
	MaxFileSize int64
	// AllowedTypes 允许的 MIME 类型
	// 以 "/*" 结尾表示前缀匹配（如 image/*），否则精确匹配
	AllowedTypes []string
}

// DefaultPolicy 返回默认策略：10 MiB，图片/PDF/文本
func DefaultPolicy() Policy {
	return Policy{
		MaxFileSize:  DefaultMaxFileSize,
		AllowedTypes: []string{"image/*", "application/pdf", "text/*"},
	}
}

// Validate 校验一批候选文件
// 恰好等于上限的文件被接受，超出一个字节即拒绝
// 单个文件被拒绝不影响同批其他文件
// 参数:
//   - files: 候选文件
//
// 返回:
//   - []File: 被接受的文件，保持原顺序
//   - []Rejection: 被拒绝的文件及原因
func (p Policy) Validate(files []File) ([]File, []Rejection) {
	var accepted []File
	var rejected []Rejection

	for _, f := range files {
		if f.Size > p.MaxFileSize {
			rejected = append(rejected, Rejection{FileInfo: f.FileInfo, Reason: ReasonTooLarge})
			continue
		}
		if !p.typeAllowed(f.Type) {
			rejected = append(rejected, Rejection{FileInfo: f.FileInfo, Reason: ReasonUnsupportedType})
			continue
		}
		accepted = append(accepted, f)
	}

	return accepted, rejected
}

// typeAllowed 检查 MIME 类型是否在允许范围内
func (p Policy) typeAllowed(mimeType string) bool {
	for _, allowed := range p.AllowedTypes {
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(mimeType, prefix+"/") {
				return true
			}
			continue
		}
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// IsImage 判断 MIME 类型是否为图片
// 接受的图片文件会生成本地预览
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
