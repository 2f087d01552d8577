package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-chatbot-server/internal/config"
)

func newTestInference(url string) *InferenceService {
	return NewInferenceService(&config.InferenceConfig{
		Endpoint: url,
		Timeout:  5 * time.Second,
	})
}

func TestDispatchSendsMetadataAndReturnsBodyVerbatim(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		// 回复不是 JSON，必须原样透传
		io.WriteString(w, "plain text reply, not JSON {")
	}))
	defer server.Close()

	svc := newTestInference(server.URL)
	reply, err := svc.Dispatch(context.Background(), &DispatchRequest{
		Message: "hello",
		Model:   "gpt-4",
		ChatID:  "c1",
		UserID:  7,
		Files: []FileMeta{
			{Name: "a.png", Type: "image/png", Size: 10},
		},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if reply != "plain text reply, not JSON {" {
		t.Errorf("reply = %q", reply)
	}

	if got["message"] != "hello" || got["model"] != "gpt-4" || got["chat_id"] != "c1" {
		t.Errorf("request body = %v", got)
	}
	if got["user_id"].(float64) != 7 {
		t.Errorf("user_id = %v", got["user_id"])
	}
	files := got["files"].([]interface{})
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	f := files[0].(map[string]interface{})
	if f["name"] != "a.png" || f["type"] != "image/png" || f["size"].(float64) != 10 {
		t.Errorf("file meta = %v", f)
	}
}

func TestDispatchNilFilesMarshalsEmptyArray(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	svc := newTestInference(server.URL)
	if _, err := svc.Dispatch(context.Background(), &DispatchRequest{Message: "hi"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	var got map[string]json.RawMessage
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if string(got["files"]) != "[]" {
		t.Errorf("files = %s, want []", got["files"])
	}
}

func TestDispatchNon2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream broken")
	}))
	defer server.Close()

	svc := newTestInference(server.URL)
	_, err := svc.Dispatch(context.Background(), &DispatchRequest{Message: "hi"})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if transportErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", transportErr.Status)
	}
}

func TestDispatchConnectionRefusedIsTransportError(t *testing.T) {
	// 端口已关闭的地址
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc := newTestInference(url)
	_, err := svc.Dispatch(context.Background(), &DispatchRequest{Message: "hi"})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if transportErr.Status != 0 {
		t.Errorf("status = %d, want 0 for network error", transportErr.Status)
	}
}
