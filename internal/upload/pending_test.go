package upload

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestImagePreviewLifecycle(t *testing.T) {
	set := NewPendingSet(DefaultPolicy())

	_, err := set.Add([]File{
		{FileInfo: FileInfo{Name: "pic.png", Type: "image/png", Size: 4}, Content: strings.NewReader("\x89PNG")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p := set.Files()[0]
	if p.Preview == nil {
		t.Fatal("image file should have a preview")
	}

	path := p.Preview.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preview file missing: %v", err)
	}

	set.Clear()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("preview file not removed after Clear: %v", err)
	}
}

func TestNonImageHasNoPreview(t *testing.T) {
	set := NewPendingSet(DefaultPolicy())

	_, err := set.Add([]File{
		{FileInfo: FileInfo{Name: "doc.pdf", Type: "application/pdf", Size: 4}, Content: strings.NewReader("%PDF")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if set.Files()[0].Preview != nil {
		t.Error("non-image file should not have a preview")
	}
}

func TestPreviewReleaseIdempotent(t *testing.T) {
	set := NewPendingSet(DefaultPolicy())
	_, err := set.Add([]File{
		{FileInfo: FileInfo{Name: "pic.jpg", Type: "image/jpeg", Size: 3}, Content: strings.NewReader("abc")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p := set.Files()[0]
	p.Release()
	p.Release() // 重复调用不应 panic
	set.Clear()
}

func TestPendingOpenRereadable(t *testing.T) {
	set := NewPendingSet(DefaultPolicy())
	_, err := set.Add([]File{
		{FileInfo: FileInfo{Name: "a.txt", Type: "text/plain", Size: 5}, Content: strings.NewReader("hello")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p := set.Files()[0]
	for i := 0; i < 2; i++ {
		data, err := io.ReadAll(p.Open())
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if string(data) != "hello" {
			t.Fatalf("read %d = %q, want hello", i, data)
		}
	}
}
