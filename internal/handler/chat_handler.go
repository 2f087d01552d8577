// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"log"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"ai-chatbot-server/internal/middleware"
	"ai-chatbot-server/internal/model"
	"ai-chatbot-server/internal/service"
	"ai-chatbot-server/internal/upload"
	"ai-chatbot-server/pkg/response"
)

// ChatHandler 会话请求处理器
type ChatHandler struct {
	chatService *service.ChatService
	catalog     *service.ModelCatalog
	policy      upload.Policy
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, catalog *service.ModelCatalog, policy upload.Policy) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		catalog:     catalog,
		policy:      policy,
	}
}

// ListChats 获取当前用户的会话列表，按最近更新排序
// GET /api/v1/chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取会话列表失败")
		return
	}

	response.Success(c, gin.H{
		"chats": chats,
		"total": len(chats),
	})
}

// GetChat 获取单个会话
// GET /api/v1/chats/:id
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	chat, err := h.chatService.GetChat(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeChatError(c, err, "获取会话失败")
		return
	}

	response.Success(c, chat)
}

// GetMessages 获取会话的消息列表，按时间正序
// GET /api/v1/chats/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	messages, err := h.chatService.GetMessages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeChatError(c, err, "获取消息失败")
		return
	}

	response.Success(c, gin.H{
		"messages": messages,
		"total":    len(messages),
	})
}

// UpdateModelRequest 切换模型请求
type UpdateModelRequest struct {
	Model string `json:"model" binding:"required"`
}

// UpdateModel 切换会话使用的模型
// PUT /api/v1/chats/:id/model
func (h *ChatHandler) UpdateModel(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req UpdateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := h.chatService.UpdateModel(c.Request.Context(), userID, c.Param("id"), req.Model); err != nil {
		h.writeChatError(c, err, "切换模型失败")
		return
	}

	response.SuccessWithMessage(c, "模型已切换", nil)
}

// DeleteChat 删除会话及其消息和附件
// DELETE /api/v1/chats/:id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeChatError(c, err, "删除会话失败")
		return
	}

	response.SuccessWithMessage(c, "会话已删除", nil)
}

// ListModels 获取可选模型列表
// GET /api/v1/models
func (h *ChatHandler) ListModels(c *gin.Context) {
	response.Success(c, gin.H{
		"models": h.catalog.List(),
	})
}

// SendResponse 发送消息的响应
type SendResponse struct {
	Chat      *model.Chat        `json:"chat"`
	UserMsg   *model.Message     `json:"user_message"`
	Assistant *model.Message     `json:"assistant_message"`
	Rejected  []upload.Rejection `json:"rejected_files,omitempty"` // 未通过校验的文件
}

// Send 发送一条消息并等待模型回复
// POST /api/v1/chats/send（multipart/form-data）
// 表单字段:
//   - message: 消息内容
//   - chat_id: 会话ID，为空时新建会话
//   - model: 模型标识，仅新建会话时生效
//   - files: 附件，可多个
func (h *ChatHandler) Send(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	content := c.PostForm("message")
	chatID := c.PostForm("chat_id")
	modelID := c.PostForm("model")

	// 解析并校验附件，被拒绝的文件不阻止其余文件发送
	pending := upload.NewPendingSet(h.policy)
	var rejected []upload.Rejection
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files, err := openFormFiles(form.File["files"])
		if err != nil {
			response.BadRequest(c, "读取上传文件失败")
			return
		}
		rejected, err = pending.Add(files)
		if err != nil {
			response.BadRequest(c, "读取上传文件失败")
			return
		}
	}
	defer pending.Clear()

	result, err := h.chatService.SendTurn(
		c.Request.Context(),
		userID,
		chatID,
		content,
		modelID,
		pending.Files(),
		nil,
	)
	if err != nil {
		var transportErr *service.TransportError
		switch {
		case errors.Is(err, service.ErrEmptySubmission):
			response.ErrorWithCode(c, 400, response.CodeEmptySubmission, "消息内容不能为空")
		case errors.Is(err, service.ErrChatNotFound):
			response.ChatNotFound(c)
		case errors.Is(err, service.ErrNoPermission):
			response.Forbidden(c, "无权访问该会话")
		case errors.As(err, &transportErr):
			log.Printf("inference dispatch failed: %v", err)
			response.InferenceFailed(c)
		default:
			log.Printf("send turn failed: %v", err)
			response.InternalError(c, "发送消息失败")
		}
		return
	}

	response.Success(c, SendResponse{
		Chat:      result.Chat,
		UserMsg:   result.UserMsg,
		Assistant: result.Assistant,
		Rejected:  rejected,
	})
}

// writeChatError 把会话相关的业务错误转成统一响应
func (h *ChatHandler) writeChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		response.ChatNotFound(c)
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, "无权访问该会话")
	default:
		log.Printf("%s: %v", fallback, err)
		response.InternalError(c, fallback)
	}
}

// openFormFiles 把 multipart 文件头转成待校验的文件
// 文件内容在加入待发送集合时才读取
func openFormFiles(headers []*multipart.FileHeader) ([]upload.File, error) {
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		files = append(files, upload.File{
			FileInfo: upload.FileInfo{
				Name: fh.Filename,
				Type: fh.Header.Get("Content-Type"),
				Size: fh.Size,
			},
			Content: f,
		})
	}
	return files, nil
}
