package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-chatbot-server/internal/model"
	"ai-chatbot-server/internal/upload"
)

// ==================== 测试用的内存实现 ====================

type fakeChatStore struct {
	mu    sync.Mutex
	chats map[string]*model.Chat
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[string]*model.Chat)}
}

func (s *fakeChatStore) Create(ctx context.Context, chat *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *chat
	s.chats[chat.ID] = &cp
	return nil
}

func (s *fakeChatStore) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	cp := *chat
	return &cp, nil
}

func (s *fakeChatStore) GetByUserID(ctx context.Context, userID int64) ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Chat
	for _, chat := range s.chats {
		if chat.UserID == userID {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (s *fakeChatStore) UpdateModel(ctx context.Context, id, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[id]; ok {
		chat.Model = modelID
	}
	return nil
}

func (s *fakeChatStore) Touch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[id]; ok && !chat.UpdatedAt.After(at) {
		chat.UpdatedAt = at
	}
	return nil
}

func (s *fakeChatStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, id)
	return nil
}

type fakeMessageStore struct {
	mu        sync.Mutex
	messages  []model.Message
	failRoles map[string]bool // 指定角色的写入返回错误
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{failRoles: make(map[string]bool)}
}

func (s *fakeMessageStore) Create(ctx context.Context, message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRoles[message.Role] {
		return errors.New("insert failed")
	}
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeMessageStore) GetByChatID(ctx context.Context, chatID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAttachmentStore struct {
	mu          sync.Mutex
	attachments []model.Attachment
}

func (s *fakeAttachmentStore) Create(ctx context.Context, attachment *model.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, *attachment)
	return nil
}

type fakeBlobStore struct {
	mu     sync.Mutex
	saved  []string // "<userID>/<messageID>/<fileName>"
	failed bool     // true 时 Save 始终失败
}

func (s *fakeBlobStore) Save(ctx context.Context, userID int64, messageID, fileName string, content io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return "", errors.New("disk full")
	}
	path := fmt.Sprintf("%d/%s/%s", userID, messageID, fileName)
	s.saved = append(s.saved, path)
	return path, nil
}

func (s *fakeBlobStore) RemoveMessageFiles(userID int64, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := fmt.Sprintf("%d/%s/", userID, messageID)
	var kept []string
	for _, p := range s.saved {
		if !strings.HasPrefix(p, prefix) {
			kept = append(kept, p)
		}
	}
	s.saved = kept
	return nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	reply   string
	err     error
	lastReq *DispatchRequest
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req *DispatchRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastReq = req
	if d.err != nil {
		return "", d.err
	}
	return d.reply, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	count int
}

func (p *fakePublisher) PublishChatsChanged(ctx context.Context, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// collectorSink 按顺序记录一轮对话中的事件
type collectorSink struct {
	mu     sync.Mutex
	events []string
}

func (s *collectorSink) ChatCreated(chat *model.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "chat:"+chat.Title)
}

func (s *collectorSink) MessageAppended(message *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, message.Role)
}

type testEnv struct {
	chats       *fakeChatStore
	messages    *fakeMessageStore
	attachments *fakeAttachmentStore
	blobs       *fakeBlobStore
	dispatcher  *fakeDispatcher
	publisher   *fakePublisher
	svc         *ChatService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		chats:       newFakeChatStore(),
		messages:    newFakeMessageStore(),
		attachments: &fakeAttachmentStore{},
		blobs:       &fakeBlobStore{},
		dispatcher:  &fakeDispatcher{reply: "你好！有什么可以帮你？"},
		publisher:   &fakePublisher{},
	}
	env.svc = NewChatService(
		env.chats,
		env.messages,
		env.attachments,
		env.blobs,
		env.dispatcher,
		env.publisher,
		"gpt-4-mini",
	)
	return env
}

// ==================== 测试 ====================

func TestSendTurnEmptySubmission(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.SendTurn(context.Background(), 1, "", "   ", "", nil, nil)
	if !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("err = %v, want ErrEmptySubmission", err)
	}

	if len(env.chats.chats) != 0 || len(env.messages.messages) != 0 {
		t.Error("empty submission must not persist anything")
	}
	if env.dispatcher.lastReq != nil {
		t.Error("empty submission must not dispatch")
	}
}

func TestSendTurnCreatesChat(t *testing.T) {
	env := newTestEnv()
	sink := &collectorSink{}

	result, err := env.svc.SendTurn(context.Background(), 42, "", "Hello", "", nil, sink)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	if result.Chat.Title != "Hello" {
		t.Errorf("title = %q, want Hello", result.Chat.Title)
	}
	if result.Chat.Model != "gpt-4-mini" {
		t.Errorf("model = %q, want default", result.Chat.Model)
	}
	if result.Chat.UserID != 42 {
		t.Errorf("userID = %d, want 42", result.Chat.UserID)
	}

	msgs, _ := env.messages.GetByChatID(context.Background(), result.Chat.ID)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != model.MessageRoleUser || msgs[0].Content != "Hello" {
		t.Errorf("first message = %+v, want user Hello", msgs[0])
	}
	if msgs[1].Role != model.MessageRoleAssistant || msgs[1].Content != env.dispatcher.reply {
		t.Errorf("second message = %+v, want verbatim reply", msgs[1])
	}

	req := env.dispatcher.lastReq
	if req.Message != "Hello" || req.ChatID != result.Chat.ID || req.UserID != 42 || req.Model != "gpt-4-mini" {
		t.Errorf("dispatch request = %+v", req)
	}
	if req.Files == nil || len(req.Files) != 0 {
		t.Errorf("files = %v, want empty slice", req.Files)
	}

	// 事件顺序: 建会话 -> 用户消息 -> 助手消息
	want := []string{"chat:Hello", model.MessageRoleUser, model.MessageRoleAssistant}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %v, want %v", sink.events, want)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, sink.events[i], want[i])
		}
	}

	// 建会话一次 + 完成一轮一次
	if env.publisher.published() != 2 {
		t.Errorf("published = %d, want 2", env.publisher.published())
	}
}

func TestSendTurnTitleTruncation(t *testing.T) {
	env := newTestEnv()

	// 60 个中文字符，标题按字符数截断而不是字节数
	content := strings.Repeat("你", 60)
	result, err := env.svc.SendTurn(context.Background(), 1, "", content, "", nil, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	if got := []rune(result.Chat.Title); len(got) != model.TitleMaxLen {
		t.Errorf("title length = %d runes, want %d", len(got), model.TitleMaxLen)
	}
}

func TestSendTurnEmptyContentWithFilesGetsDefaultTitle(t *testing.T) {
	env := newTestEnv()

	files := pendingFiles(t, "report.pdf", "application/pdf", "%PDF")
	result, err := env.svc.SendTurn(context.Background(), 1, "", "", "", files, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}
	if result.Chat.Title != model.DefaultChatTitle {
		t.Errorf("title = %q, want %q", result.Chat.Title, model.DefaultChatTitle)
	}
}

func TestSendTurnDispatchFailureKeepsUserMessage(t *testing.T) {
	env := newTestEnv()
	env.dispatcher.err = &TransportError{Op: "dispatch", Status: 503}

	before := time.Now().Add(-time.Hour)
	chat := &model.Chat{ID: "c1", UserID: 1, Title: "t", Model: "gpt-4", UpdatedAt: before}
	env.chats.Create(context.Background(), chat)

	_, err := env.svc.SendTurn(context.Background(), 1, "c1", "hi", "", nil, nil)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}

	msgs, _ := env.messages.GetByChatID(context.Background(), "c1")
	if len(msgs) != 1 || msgs[0].Role != model.MessageRoleUser {
		t.Fatalf("messages = %v, want single user message", msgs)
	}

	// 失败的轮次不更新会话时间戳
	stored, _ := env.chats.GetByID(context.Background(), "c1")
	if !stored.UpdatedAt.Equal(before) {
		t.Errorf("updated_at changed on failed turn")
	}
}

func TestSendTurnExistingChatOwnership(t *testing.T) {
	env := newTestEnv()
	env.chats.Create(context.Background(), &model.Chat{ID: "c1", UserID: 1})

	if _, err := env.svc.SendTurn(context.Background(), 2, "c1", "hi", "", nil, nil); !errors.Is(err, ErrNoPermission) {
		t.Errorf("err = %v, want ErrNoPermission", err)
	}
	if _, err := env.svc.SendTurn(context.Background(), 1, "missing", "hi", "", nil, nil); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}

func TestSendTurnAdvancesUpdatedAt(t *testing.T) {
	env := newTestEnv()
	before := time.Now().Add(-time.Hour)
	env.chats.Create(context.Background(), &model.Chat{ID: "c1", UserID: 1, Model: "gpt-4", UpdatedAt: before})

	result, err := env.svc.SendTurn(context.Background(), 1, "c1", "hi", "", nil, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	stored, _ := env.chats.GetByID(context.Background(), "c1")
	if !stored.UpdatedAt.After(before) {
		t.Error("updated_at not advanced after successful turn")
	}
	if !result.Chat.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Error("returned chat out of sync with store")
	}
}

func TestSendTurnUploadsAttachments(t *testing.T) {
	env := newTestEnv()

	files := pendingFiles(t, "a.txt", "text/plain", "hello")
	result, err := env.svc.SendTurn(context.Background(), 1, "", "look", "", files, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	// SendTurn 返回前等待所有上传完成
	if len(env.blobs.saved) != 1 {
		t.Fatalf("saved blobs = %v, want 1", env.blobs.saved)
	}
	if len(env.attachments.attachments) != 1 {
		t.Fatalf("attachment records = %d, want 1", len(env.attachments.attachments))
	}

	att := env.attachments.attachments[0]
	if att.MessageID != result.UserMsg.ID {
		t.Errorf("attachment bound to %q, want user message %q", att.MessageID, result.UserMsg.ID)
	}
	if att.FileName != "a.txt" || att.FileType != "text/plain" || att.FileSize != 5 {
		t.Errorf("attachment metadata = %+v", att)
	}

	// 推理请求只带元数据
	if len(env.dispatcher.lastReq.Files) != 1 || env.dispatcher.lastReq.Files[0].Name != "a.txt" {
		t.Errorf("dispatch files = %v", env.dispatcher.lastReq.Files)
	}
}

func TestSendTurnUploadFailureDoesNotFailTurn(t *testing.T) {
	env := newTestEnv()
	env.blobs.failed = true

	files := pendingFiles(t, "a.txt", "text/plain", "hello")
	result, err := env.svc.SendTurn(context.Background(), 1, "", "look", "", files, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	if result.Assistant == nil {
		t.Error("assistant reply missing")
	}
	if len(env.attachments.attachments) != 0 {
		t.Error("failed upload must not create attachment record")
	}
}

func TestGetChatOwnership(t *testing.T) {
	env := newTestEnv()
	env.chats.Create(context.Background(), &model.Chat{ID: "c1", UserID: 1})

	if _, err := env.svc.GetChat(context.Background(), 1, "c1"); err != nil {
		t.Errorf("owner access failed: %v", err)
	}
	if _, err := env.svc.GetChat(context.Background(), 2, "c1"); !errors.Is(err, ErrNoPermission) {
		t.Errorf("err = %v, want ErrNoPermission", err)
	}
	if _, err := env.svc.GetChat(context.Background(), 1, "nope"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("err = %v, want ErrChatNotFound", err)
	}
}

func TestDeleteChatRemovesFiles(t *testing.T) {
	env := newTestEnv()

	files := pendingFiles(t, "a.txt", "text/plain", "hello")
	result, err := env.svc.SendTurn(context.Background(), 1, "", "hi", "", files, nil)
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}
	if len(env.blobs.saved) != 1 {
		t.Fatalf("saved blobs = %d, want 1", len(env.blobs.saved))
	}

	if err := env.svc.DeleteChat(context.Background(), 1, result.Chat.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	if _, err := env.svc.GetChat(context.Background(), 1, result.Chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("chat still accessible after delete")
	}
	if len(env.blobs.saved) != 0 {
		t.Errorf("blobs not cleaned up: %v", env.blobs.saved)
	}
}

func TestUpdateModelPublishes(t *testing.T) {
	env := newTestEnv()
	env.chats.Create(context.Background(), &model.Chat{ID: "c1", UserID: 1, Model: "gpt-4-mini"})

	if err := env.svc.UpdateModel(context.Background(), 1, "c1", "gpt-4"); err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}

	stored, _ := env.chats.GetByID(context.Background(), "c1")
	if stored.Model != "gpt-4" {
		t.Errorf("model = %q, want gpt-4", stored.Model)
	}
	if env.publisher.published() != 1 {
		t.Errorf("published = %d, want 1", env.publisher.published())
	}
}

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"", model.DefaultChatTitle},
		{"   ", model.DefaultChatTitle},
		{"hi", "hi"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := TitleFromContent(tt.content); got != tt.want {
			t.Errorf("TitleFromContent(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

// pendingFiles 构造一个通过校验的待发送文件列表
func pendingFiles(t *testing.T, name, mimeType, content string) []*upload.Pending {
	t.Helper()
	set := upload.NewPendingSet(upload.DefaultPolicy())
	rejected, err := set.Add([]upload.File{{
		FileInfo: upload.FileInfo{Name: name, Type: mimeType, Size: int64(len(content))},
		Content:  strings.NewReader(content),
	}})
	if err != nil || len(rejected) != 0 {
		t.Fatalf("failed to build pending files: err=%v rejected=%v", err, rejected)
	}
	return set.Files()
}
