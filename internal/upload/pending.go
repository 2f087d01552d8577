// Package upload 提供附件的准入校验和待发送集合管理
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Preview 图片附件的本地预览句柄
// 是一种可回收资源：文件从待发送集合移除或集合被清空时必须 Release，
// 否则预览文件会泄漏
type Preview struct {
	path string
	once sync.Once
}

// Path 返回预览文件的本地路径
func (p *Preview) Path() string {
	return p.path
}

// Release 回收预览资源，可安全地多次调用
func (p *Preview) Release() {
	p.once.Do(func() {
		_ = os.Remove(p.path)
	})
}

// newPreview 把图片内容写入临时文件生成预览
func newPreview(name string, content []byte) (*Preview, error) {
	f, err := os.CreateTemp("", "preview-*"+filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &Preview{path: f.Name()}, nil
}

// Pending 待发送集合中的一个文件
// 内容已缓冲在内存中（大小经过策略校验），图片附带预览句柄
type Pending struct {
	FileInfo
	content []byte
	Preview *Preview // 仅图片文件有值
}

// Open 返回文件内容的读取器，可重复调用
func (p *Pending) Open() io.Reader {
	return bytes.NewReader(p.content)
}

// Release 回收文件附带的预览资源，可安全地多次调用
func (p *Pending) Release() {
	if p.Preview != nil {
		p.Preview.Release()
	}
}

// PendingSet 待发送附件集合
// 持有用户已选择、尚未提交的附件，负责预览句柄的生命周期
type PendingSet struct {
	policy Policy
	files  []*Pending
}

// NewPendingSet 创建待发送集合
func NewPendingSet(policy Policy) *PendingSet {
	return &PendingSet{policy: policy}
}

// Add 校验并加入一批候选文件
// 返回本批次的拒绝列表；被拒绝的文件不会进入集合
// 接受的图片文件会生成预览，预览生成失败不影响文件加入
func (s *PendingSet) Add(files []File) ([]Rejection, error) {
	accepted, rejected := s.policy.Validate(files)

	for _, f := range accepted {
		// 声明的大小经过校验，读取时仍按上限截断以防内容超长
		content, err := io.ReadAll(io.LimitReader(f.Content, s.policy.MaxFileSize+1))
		if err != nil {
			return rejected, fmt.Errorf("failed to buffer %s: %w", f.Name, err)
		}
		if int64(len(content)) > s.policy.MaxFileSize {
			rejected = append(rejected, Rejection{FileInfo: f.FileInfo, Reason: ReasonTooLarge})
			continue
		}

		pending := &Pending{FileInfo: f.FileInfo, content: content}
		if IsImage(f.Type) {
			if preview, err := newPreview(f.Name, content); err == nil {
				pending.Preview = preview
			}
		}
		s.files = append(s.files, pending)
	}

	return rejected, nil
}

// Files 返回集合中的所有文件，保持加入顺序
func (s *PendingSet) Files() []*Pending {
	return s.files
}

// Policy 返回集合使用的校验策略
func (s *PendingSet) Policy() Policy {
	return s.policy
}

// Len 返回集合中的文件数量
func (s *PendingSet) Len() int {
	return len(s.files)
}

// Remove 从集合移除指定下标的文件并回收其预览
func (s *PendingSet) Remove(index int) {
	if index < 0 || index >= len(s.files) {
		return
	}
	if p := s.files[index].Preview; p != nil {
		p.Release()
	}
	s.files = append(s.files[:index], s.files[index+1:]...)
}

// Clear 清空集合并回收所有预览
// 提交成功后或用户放弃输入时调用
func (s *PendingSet) Clear() {
	for _, f := range s.files {
		if f.Preview != nil {
			f.Preview.Release()
		}
	}
	s.files = nil
}
