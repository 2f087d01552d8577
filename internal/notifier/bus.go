// Package notifier 提供会话列表变更信号的分发
// 订阅方收到的信号不携带内容，只表示"列表变了，重新拉取"
package notifier

import (
	"sync"
)

// Unsubscribe 取消订阅
// 订阅方在销毁时必须调用，否则订阅会一直泄漏
type Unsubscribe func()

// subscriber 单个订阅者
// signal 是容量为 1 的通道：信号没有内容，连续的多次发布
// 会合并成一次回调，订阅方对重复刷新必须是幂等的
type subscriber struct {
	signal chan struct{}
}

// Bus 进程内的变更信号总线
// 按用户分组，Publish 向该用户的所有订阅者扇出
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]map[int64]*subscriber // userID -> 订阅ID -> 订阅者
}

// NewBus 创建 Bus 实例
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int64]map[int64]*subscriber),
	}
}

// Subscribe 订阅指定用户的变更信号
// onChange 在独立的 goroutine 中被调用，不要在其中执行长时间阻塞操作
// 参数:
//   - userID: 用户ID
//   - onChange: 信号回调
//
// 返回:
//   - Unsubscribe: 取消订阅函数，可安全地多次调用
func (b *Bus) Subscribe(userID int64, onChange func()) Unsubscribe {
	sub := &subscriber{signal: make(chan struct{}, 1)}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int64]*subscriber)
	}
	b.subs[userID][id] = sub
	b.mu.Unlock()

	// 每个订阅者一个分发 goroutine，Unsubscribe 关闭通道后退出
	go func() {
		for range sub.signal {
			onChange()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[userID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, userID)
				}
			}
			// 关闭必须和 Publish 的写入持同一把锁，避免向已关闭通道写入
			close(sub.signal)
			b.mu.Unlock()
		})
	}
}

// Publish 向用户的所有订阅者发出变更信号
// 非阻塞：订阅者已有待处理的信号时直接跳过（信号合并）
// 参数:
//   - userID: 用户ID
func (b *Bus) Publish(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[userID] {
		select {
		case sub.signal <- struct{}{}:
		default:
			// 已有未消费的信号，合并
		}
	}
}

// SubscriberCount 返回用户当前的订阅者数量
// 主要用于测试和监控
func (b *Bus) SubscriberCount(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
