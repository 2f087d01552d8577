// Package util 提供通用工具函数
package util

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 对密码进行哈希
// bcrypt 自动加盐，相同密码每次哈希结果不同
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 验证密码是否匹配哈希值
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NewID 生成 UUID 字符串，作为会话和消息的主键
func NewID() string {
	return uuid.NewString()
}

// FirstN 返回字符串的前 n 个字符（按 Unicode 字符计数，不是字节）
// 用于从消息内容截取会话标题
func FirstN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
