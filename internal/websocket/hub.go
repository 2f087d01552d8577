// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"log"
	"sync"
)

// Hub 是 WebSocket 连接的中心管理器
// 负责客户端的注册、注销和连接生命周期
// 跨连接的会话变更通过每个视图自己的事件订阅传播，Hub 不做消息路由
type Hub struct {
	// 客户端映射：userID -> []*Client
	// 一个用户可能有多个连接（多标签页、多设备）
	clients map[int64][]*Client

	// 注册通道
	register chan *Client

	// 注销通道
	unregister chan *Client

	// 互斥锁，保护并发访问
	mu sync.RWMutex
}

// NewHub 创建 Hub 实例
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 启动 Hub 的主循环
// 应该在单独的 goroutine 中运行
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.userID] = append(h.clients[client.userID], client)
	h.mu.Unlock()

	log.Printf("WebSocket client registered: userID=%d", client.userID)
}

// unregisterClient 注销客户端并释放其视图
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			h.clients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	// 取消视图的事件订阅并清理待发送文件
	client.view.Close()
	client.Close()

	log.Printf("WebSocket client unregistered: userID=%d", client.userID)
}

// Register 注册客户端（供外部调用）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// UserConnectionCount 返回用户当前的连接数
func (h *Hub) UserConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
