package service

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"ai-chatbot-server/internal/model"
	"ai-chatbot-server/internal/upload"
	"ai-chatbot-server/pkg/util"
)

// ChatStore 会话存储接口
type ChatStore interface {
	Create(ctx context.Context, chat *model.Chat) error
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	GetByUserID(ctx context.Context, userID int64) ([]model.Chat, error)
	UpdateModel(ctx context.Context, id, modelID string) error
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// MessageStore 消息存储接口
type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	GetByChatID(ctx context.Context, chatID string) ([]model.Message, error)
}

// AttachmentStore 附件记录存储接口
type AttachmentStore interface {
	Create(ctx context.Context, attachment *model.Attachment) error
}

// BlobStore 文件内容存储接口
type BlobStore interface {
	Save(ctx context.Context, userID int64, messageID, fileName string, content io.Reader) (string, error)
	RemoveMessageFiles(userID int64, messageID string) error
}

// ChangePublisher 会话变更事件发布接口
type ChangePublisher interface {
	PublishChatsChanged(ctx context.Context, userID int64) error
}

// TurnSink 接收一轮对话过程中产生的事件
// 调用方用它在消息落库后立即更新界面，不必等整轮结束
type TurnSink interface {
	ChatCreated(chat *model.Chat)
	MessageAppended(message *model.Message)
}

// TurnResult 一轮对话的结果
type TurnResult struct {
	Chat      *model.Chat
	UserMsg   *model.Message
	Assistant *model.Message
}

// ChatService 提供会话和消息的业务逻辑
type ChatService struct {
	chats        ChatStore
	messages     MessageStore
	attachments  AttachmentStore
	blobs        BlobStore
	dispatcher   Dispatcher
	publisher    ChangePublisher
	defaultModel string
}

// NewChatService 创建 ChatService 实例
func NewChatService(
	chats ChatStore,
	messages MessageStore,
	attachments AttachmentStore,
	blobs BlobStore,
	dispatcher Dispatcher,
	publisher ChangePublisher,
	defaultModel string,
) *ChatService {
	return &ChatService{
		chats:        chats,
		messages:     messages,
		attachments:  attachments,
		blobs:        blobs,
		dispatcher:   dispatcher,
		publisher:    publisher,
		defaultModel: defaultModel,
	}
}

// TitleFromContent 从消息内容生成会话标题
// 取前 50 个字符，内容为空时使用默认标题
func TitleFromContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return model.DefaultChatTitle
	}
	return util.FirstN(trimmed, model.TitleMaxLen)
}

// SendTurn 执行一轮对话
// 流程: 确保会话存在 -> 落库用户消息 -> 并发上传附件 -> 调用模型 -> 落库助手回复
// 附件上传失败不中断流程；模型调用失败时用户消息保留
// 参数:
//   - modelID: 会话使用的模型，chatID 为空新建会话时生效
//   - files: 已通过校验的待发送文件，可以为空
//   - sink: 事件接收器，可以为 nil
func (s *ChatService) SendTurn(
	ctx context.Context,
	userID int64,
	chatID string,
	content string,
	modelID string,
	files []*upload.Pending,
	sink TurnSink,
) (*TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(files) == 0 {
		return nil, ErrEmptySubmission
	}

	chat, err := s.ensureChat(ctx, userID, chatID, content, modelID, sink)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		ID:      util.NewID(),
		ChatID:  chat.ID,
		Role:    model.MessageRoleUser,
		Content: content,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, &PersistenceError{Op: "create user message", Err: err}
	}

	// 附件上传在后台进行，不阻塞模型调用
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *upload.Pending) {
			defer wg.Done()
			s.uploadAttachment(ctx, userID, userMsg.ID, f)
		}(f)
	}
	defer wg.Wait()

	if sink != nil {
		sink.MessageAppended(userMsg)
	}

	metas := make([]FileMeta, 0, len(files))
	for _, f := range files {
		metas = append(metas, FileMeta{
			Name: f.Name,
			Type: f.Type,
			Size: f.Size,
		})
	}

	reply, err := s.dispatcher.Dispatch(ctx, &DispatchRequest{
		Message: content,
		Model:   chat.Model,
		ChatID:  chat.ID,
		UserID:  userID,
		Files:   metas,
	})
	if err != nil {
		// 用户消息已落库，保留
		return nil, err
	}

	assistant := &model.Message{
		ID:      util.NewID(),
		ChatID:  chat.ID,
		Role:    model.MessageRoleAssistant,
		Content: reply,
	}
	if err := s.messages.Create(ctx, assistant); err != nil {
		return nil, &PersistenceError{Op: "create assistant message", Err: err}
	}

	if sink != nil {
		sink.MessageAppended(assistant)
	}

	// 会话时间戳更新失败只记录日志，消息本身已经落库
	now := time.Now()
	if err := s.chats.Touch(ctx, chat.ID, now); err != nil {
		log.Printf("failed to touch chat %s: %v", chat.ID, err)
	} else {
		chat.UpdatedAt = now
	}
	s.notifyChanged(ctx, userID)

	return &TurnResult{
		Chat:      chat,
		UserMsg:   userMsg,
		Assistant: assistant,
	}, nil
}

// ensureChat 返回已有会话，或者在 chatID 为空时新建一个
func (s *ChatService) ensureChat(
	ctx context.Context,
	userID int64,
	chatID string,
	content string,
	modelID string,
	sink TurnSink,
) (*model.Chat, error) {
	if chatID != "" {
		chat, err := s.chats.GetByID(ctx, chatID)
		if err != nil {
			return nil, &PersistenceError{Op: "get chat", Err: err}
		}
		if chat == nil {
			return nil, ErrChatNotFound
		}
		if chat.UserID != userID {
			return nil, ErrNoPermission
		}
		return chat, nil
	}

	if modelID == "" {
		modelID = s.defaultModel
	}
	chat := &model.Chat{
		ID:        util.NewID(),
		UserID:    userID,
		Title:     TitleFromContent(content),
		Model:     modelID,
		UpdatedAt: time.Now(),
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, &PersistenceError{Op: "create chat", Err: err}
	}

	if sink != nil {
		sink.ChatCreated(chat)
	}
	s.notifyChanged(ctx, userID)

	return chat, nil
}

// uploadAttachment 上传单个附件并写入附件记录
// 任一步失败只记录日志，不影响消息发送
func (s *ChatService) uploadAttachment(ctx context.Context, userID int64, messageID string, f *upload.Pending) {
	path, err := s.blobs.Save(ctx, userID, messageID, f.Name, f.Open())
	if err != nil {
		log.Printf("failed to upload attachment %s: %v", f.Name, err)
		return
	}

	att := &model.Attachment{
		ID:          util.NewID(),
		MessageID:   messageID,
		FileName:    f.Name,
		FileType:    f.Type,
		FileSize:    f.Size,
		StoragePath: path,
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		log.Printf("failed to record attachment %s: %v", f.Name, err)
	}
}

// ListChats 获取用户的会话列表，按最近更新排序
func (s *ChatService) ListChats(ctx context.Context, userID int64) ([]model.Chat, error) {
	chats, err := s.chats.GetByUserID(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list chats", Err: err}
	}
	return chats, nil
}

// GetChat 获取单个会话，校验归属
func (s *ChatService) GetChat(ctx context.Context, userID int64, chatID string) (*model.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, &PersistenceError{Op: "get chat", Err: err}
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	if chat.UserID != userID {
		return nil, ErrNoPermission
	}
	return chat, nil
}

// GetMessages 获取会话的消息列表，按时间正序
func (s *ChatService) GetMessages(ctx context.Context, userID int64, chatID string) ([]model.Message, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	messages, err := s.messages.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, &PersistenceError{Op: "list messages", Err: err}
	}
	return messages, nil
}

// UpdateModel 修改会话使用的模型
func (s *ChatService) UpdateModel(ctx context.Context, userID int64, chatID, modelID string) error {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return err
	}
	if err := s.chats.UpdateModel(ctx, chatID, modelID); err != nil {
		return &PersistenceError{Op: "update model", Err: err}
	}
	s.notifyChanged(ctx, userID)
	return nil
}

// DeleteChat 删除会话及其消息和附件文件
func (s *ChatService) DeleteChat(ctx context.Context, userID int64, chatID string) error {
	chat, err := s.GetChat(ctx, userID, chatID)
	if err != nil {
		return err
	}

	messages, err := s.messages.GetByChatID(ctx, chatID)
	if err != nil {
		return &PersistenceError{Op: "list messages", Err: err}
	}

	if err := s.chats.Delete(ctx, chat.ID); err != nil {
		return &PersistenceError{Op: "delete chat", Err: err}
	}

	// 文件清理是尽力而为，残留文件不影响数据一致性
	for _, msg := range messages {
		if err := s.blobs.RemoveMessageFiles(userID, msg.ID); err != nil {
			log.Printf("failed to remove files of message %s: %v", msg.ID, err)
		}
	}

	s.notifyChanged(ctx, userID)
	return nil
}

func (s *ChatService) notifyChanged(ctx context.Context, userID int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChatsChanged(ctx, userID); err != nil {
		log.Printf("failed to publish chats changed for user %d: %v", userID, err)
	}
}
