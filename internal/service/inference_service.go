package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ai-chatbot-server/internal/config"
)

// FileMeta 随推理请求上报的文件元信息
// 只传元数据，不传文件内容
type FileMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// DispatchRequest 推理请求
type DispatchRequest struct {
	Message string     `json:"message"`
	Model   string     `json:"model"`
	ChatID  string     `json:"chat_id"`
	UserID  int64      `json:"user_id"`
	Files   []FileMeta `json:"files"`
}

// Dispatcher 模型推理调用接口
type Dispatcher interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (string, error)
}

// InferenceService 通过 HTTP 调用外部模型服务
type InferenceService struct {
	endpoint string
	client   *http.Client
}

// NewInferenceService 创建 InferenceService 实例
func NewInferenceService(cfg *config.InferenceConfig) *InferenceService {
	return &InferenceService{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Dispatch 发送推理请求，返回模型回复的原始文本
// 响应体不做任何解析，原样返回
func (s *InferenceService) Dispatch(ctx context.Context, req *DispatchRequest) (string, error) {
	if req.Files == nil {
		req.Files = []FileMeta{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Op: "dispatch", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{Op: "dispatch", Status: resp.StatusCode}
	}

	return string(data), nil
}
