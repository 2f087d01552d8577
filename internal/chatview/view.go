// Package chatview 维护单个客户端的会话视图状态
// 每个连接（或每个界面实例）持有一个 ChatView，互相独立
package chatview

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"ai-chatbot-server/internal/model"
	"ai-chatbot-server/internal/notifier"
	"ai-chatbot-server/internal/service"
	"ai-chatbot-server/internal/upload"
)

// ErrBusy 表示当前已有一条消息在发送中
// 同一个视图实例同时只允许一次发送，不同实例之间不互斥
var ErrBusy = errors.New("上一条消息仍在发送中")

// ChatView 会话视图
// 所有导出方法都是并发安全的
type ChatView struct {
	userID   int64
	chats    *service.ChatService
	bus      *notifier.Bus
	unsub    notifier.Unsubscribe
	defModel string

	mu           sync.Mutex
	activeChatID string
	chatModel    string
	chatList     []model.Chat
	messages     []model.Message
	pending      *upload.PendingSet
	sending      bool
	loading      bool
	onUpdate     func()
}

// New 创建绑定到指定用户的 ChatView
// 创建后自动订阅该用户的会话变更事件，变更时重新拉取会话列表
func New(userID int64, chats *service.ChatService, bus *notifier.Bus, policy upload.Policy, defaultModel string) *ChatView {
	v := &ChatView{
		userID:    userID,
		chats:     chats,
		bus:       bus,
		defModel:  defaultModel,
		chatModel: defaultModel,
		pending:   upload.NewPendingSet(policy),
	}

	if bus != nil {
		v.unsub = bus.Subscribe(userID, func() {
			if err := v.RefreshChats(context.Background()); err != nil {
				log.Printf("failed to refresh chats for user %d: %v", userID, err)
			}
		})
	}

	return v
}

// Close 取消事件订阅并释放待发送文件
func (v *ChatView) Close() {
	if v.unsub != nil {
		v.unsub()
	}
	v.mu.Lock()
	v.pending.Clear()
	v.mu.Unlock()
}

// Snapshot 当前视图状态的快照
type Snapshot struct {
	ActiveChatID string
	Model        string
	Chats        []model.Chat
	Messages     []model.Message
	PendingFiles []upload.FileInfo
	Sending      bool
	Loading      bool
}

// Snapshot 返回当前状态的拷贝
func (v *ChatView) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	files := make([]upload.FileInfo, 0, v.pending.Len())
	for _, p := range v.pending.Files() {
		files = append(files, p.FileInfo)
	}

	return Snapshot{
		ActiveChatID: v.activeChatID,
		Model:        v.chatModel,
		Chats:        append([]model.Chat(nil), v.chatList...),
		Messages:     append([]model.Message(nil), v.messages...),
		PendingFiles: files,
		Sending:      v.sending,
		Loading:      v.loading,
	}
}

// NewChat 切换到未持久化的新会话状态
// 此时没有会话记录，首次发送消息时才会真正创建会话
func (v *ChatView) NewChat() {
	v.mu.Lock()
	v.activeChatID = ""
	v.chatModel = v.defModel
	v.messages = nil
	v.pending.Clear()
	v.mu.Unlock()
	v.notify()
}

// SelectChat 切换到已有会话并加载其消息
// 会话不存在（比如已在别处删除）时回到新会话状态
func (v *ChatView) SelectChat(ctx context.Context, chatID string) error {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()
	v.notify()
	defer func() {
		v.mu.Lock()
		v.loading = false
		v.mu.Unlock()
		v.notify()
	}()

	chat, err := v.chats.GetChat(ctx, v.userID, chatID)
	if errors.Is(err, service.ErrChatNotFound) {
		v.NewChat()
		return err
	}
	if err != nil {
		return err
	}

	messages, err := v.chats.GetMessages(ctx, v.userID, chatID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.activeChatID = chat.ID
	v.chatModel = chat.Model
	v.messages = messages
	v.pending.Clear()
	v.mu.Unlock()
	v.notify()
	return nil
}

// RefreshChats 重新拉取会话列表
func (v *ChatView) RefreshChats(ctx context.Context) error {
	chats, err := v.chats.ListChats(ctx, v.userID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.chatList = chats
	// 当前会话已被删除时回到新会话状态
	if v.activeChatID != "" && !containsChat(chats, v.activeChatID) {
		v.activeChatID = ""
		v.chatModel = v.defModel
		v.messages = nil
	}
	v.mu.Unlock()
	v.notify()
	return nil
}

// AddFiles 校验并暂存待发送文件
// 返回被拒绝的文件及原因，被拒绝的文件不会进入暂存区
func (v *ChatView) AddFiles(files []upload.File) ([]upload.Rejection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending.Add(files)
}

// RemoveFile 移除暂存区中指定位置的文件
func (v *ChatView) RemoveFile(index int) {
	v.mu.Lock()
	v.pending.Remove(index)
	v.mu.Unlock()
	v.notify()
}

// ChangeModel 切换当前会话使用的模型
// 视图先行更新，持久化失败只上报错误，不回滚本地状态
func (v *ChatView) ChangeModel(ctx context.Context, modelID string) error {
	v.mu.Lock()
	chatID := v.activeChatID
	v.chatModel = modelID
	v.mu.Unlock()
	v.notify()

	// 新会话还没有持久化记录，只改视图状态
	if chatID == "" {
		return nil
	}
	return v.chats.UpdateModel(ctx, v.userID, chatID, modelID)
}

// DeleteChat 删除会话
// 删除的是当前会话时回到新会话状态
func (v *ChatView) DeleteChat(ctx context.Context, chatID string) error {
	if err := v.chats.DeleteChat(ctx, v.userID, chatID); err != nil {
		return err
	}

	v.mu.Lock()
	if v.activeChatID == chatID {
		v.activeChatID = ""
		v.chatModel = v.defModel
		v.messages = nil
	}
	v.mu.Unlock()
	v.notify()
	return nil
}

// Submit 发送一条消息
// 空内容且无附件时不做任何事；已有发送在进行中时返回 ErrBusy
// 发送过程中消息落库后会立即出现在视图里，不等整轮结束
func (v *ChatView) Submit(ctx context.Context, content string) error {
	v.mu.Lock()
	if v.sending {
		v.mu.Unlock()
		return ErrBusy
	}
	files := v.pending.Files()
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		v.mu.Unlock()
		return nil
	}
	v.sending = true
	chatID := v.activeChatID
	modelID := v.chatModel
	// 文件交给本轮发送，暂存区立即清空
	v.pending = upload.NewPendingSet(v.pending.Policy())
	v.mu.Unlock()
	v.notify()

	defer func() {
		v.mu.Lock()
		v.sending = false
		v.mu.Unlock()
		v.notify()
	}()
	defer func() {
		for _, f := range files {
			f.Release()
		}
	}()

	_, err := v.chats.SendTurn(ctx, v.userID, chatID, content, modelID, files, v)
	return err
}

// ChatCreated 实现 service.TurnSink
func (v *ChatView) ChatCreated(chat *model.Chat) {
	v.mu.Lock()
	v.activeChatID = chat.ID
	v.chatModel = chat.Model
	v.chatList = append([]model.Chat{*chat}, v.chatList...)
	v.mu.Unlock()
	v.notify()
}

// MessageAppended 实现 service.TurnSink
func (v *ChatView) MessageAppended(message *model.Message) {
	v.mu.Lock()
	if message.ChatID == v.activeChatID {
		v.messages = append(v.messages, *message)
	}
	v.mu.Unlock()
	v.notify()
}

// SetOnUpdate 注册视图状态变化后的回调，用于推送界面更新
// 订阅 goroutine 随时可能触发回调，回调自身必须并发安全
func (v *ChatView) SetOnUpdate(fn func()) {
	v.mu.Lock()
	v.onUpdate = fn
	v.mu.Unlock()
}

func (v *ChatView) notify() {
	v.mu.Lock()
	fn := v.onUpdate
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func containsChat(chats []model.Chat, id string) bool {
	for _, c := range chats {
		if c.ID == id {
			return true
		}
	}
	return false
}
