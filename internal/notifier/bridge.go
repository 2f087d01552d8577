// Package notifier 提供会话列表变更信号的分发
package notifier

import (
	"context"
	"log"

	"ai-chatbot-server/internal/cache"
)

// Bridge 把 Redis 上的会话变更信号接入进程内总线
// 业务层只向 Redis 发布；无论信号来自本实例还是其他实例，
// 都经由 Bridge 送达本地订阅者，多实例部署下天然一致
type Bridge struct {
	bus   *Bus
	cache *cache.RedisCache
}

// NewBridge 创建 Bridge 实例
func NewBridge(bus *Bus, redisCache *cache.RedisCache) *Bridge {
	return &Bridge{
		bus:   bus,
		cache: redisCache,
	}
}

// Run 启动信号转发循环
// 应该在单独的 goroutine 中运行，ctx 取消后退出
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.cache.SubscribeChatsChanged(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, valid := cache.ParseChatsChangedChannel(msg.Channel)
			if !valid {
				log.Printf("Ignoring signal on unexpected channel: %s", msg.Channel)
				continue
			}
			b.bus.Publish(userID)
		}
	}
}
