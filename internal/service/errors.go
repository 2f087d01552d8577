package service

import (
	"errors"
	"fmt"
)

// 定义业务错误
var (
	ErrUserExists      = errors.New("用户名已存在")
	ErrEmailExists     = errors.New("邮箱已被注册")
	ErrUserNotFound    = errors.New("用户不存在")
	ErrPasswordWrong   = errors.New("密码错误")
	ErrChatNotFound    = errors.New("会话不存在")
	ErrNoPermission    = errors.New("无权访问该资源")
	ErrEmptySubmission = errors.New("消息内容不能为空")
)

// PersistenceError 数据库写入失败
// Op 标识失败发生在哪一步，便于调用方决定是否已有部分数据落库
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TransportError 模型服务调用失败
// Status 为 0 表示请求未到达服务端（网络错误）
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transport failed at %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("transport failed at %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
