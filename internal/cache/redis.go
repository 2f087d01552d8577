// Package cache 提供 Redis 缓存操作的封装
// 处理会话变更信号的发布订阅和 JWT 黑名单等需要快速访问的数据
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-chatbot-server/internal/config"
)

// chatsChangedPrefix 会话列表变更信号的频道前缀
// 完整频道名形如 chats:changed:<userID>
const chatsChangedPrefix = "chats:changed:"

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== 会话变更信号 ====================
// 任何实例上的会话创建/更新/删除都通过这里广播
// 信号不携带内容，订阅方收到后整体重新拉取会话列表

// PublishChatsChanged 发布会话列表变更信号
// 会话的创建、更新和删除提交后调用
// 参数:
//   - ctx: 上下文
//   - userID: 会话所属用户ID
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) PublishChatsChanged(ctx context.Context, userID int64) error {
	// PUBLISH 发布到用户专属频道
	// 所有订阅该频道的实例都会收到信号
	return c.client.Publish(ctx, chatsChangedPrefix+strconv.FormatInt(userID, 10), "1").Err()
}

// SubscribeChatsChanged 订阅所有用户的会话变更信号
// 使用模式订阅，一条连接覆盖全部用户频道
// 返回 PubSub 对象，调用方负责关闭
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - *redis.PubSub: PubSub 订阅对象
func (c *RedisCache) SubscribeChatsChanged(ctx context.Context) *redis.PubSub {
	return c.client.PSubscribe(ctx, chatsChangedPrefix+"*")
}

// ParseChatsChangedChannel 从频道名解析出用户ID
// 参数:
//   - channel: 频道名，形如 chats:changed:42
//
// 返回:
//   - int64: 用户ID
//   - bool: 频道名是否合法
func ParseChatsChangedChannel(channel string) (int64, bool) {
	suffix, found := strings.CutPrefix(channel, chatsChangedPrefix)
	if !found {
		return 0, false
	}
	userID, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// ==================== JWT 黑名单 ====================
// 用于实现 Token 强制失效（登出）功能

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}

	// TTL 设置为 Token 的剩余有效期，过期后自动删除
	return c.client.Set(ctx, "jwt:blacklist:"+tokenHash, "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值
//
// 返回:
//   - bool: 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	return c.client.Exists(ctx, "jwt:blacklist:"+tokenHash).Val() > 0
}
