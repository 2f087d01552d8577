package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStoreSave(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	rel, err := store.Save(context.Background(), 7, "msg-1", "photo.png", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// 路径布局: <userID>/<messageID>/<时间戳>.<扩展名>
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		t.Fatalf("path %q, want 3 segments", rel)
	}
	if parts[0] != "7" || parts[1] != "msg-1" {
		t.Errorf("path %q, want prefix 7/msg-1/", rel)
	}
	if !strings.HasSuffix(parts[2], ".png") {
		t.Errorf("path %q, want .png suffix", rel)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("stored content = %q, want data", data)
	}
}

func TestDiskStoreSaveWithoutExtension(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	rel, err := store.Save(context.Background(), 1, "m", "README", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(filepath.Base(rel), ".") {
		t.Errorf("path %q should have no extension", rel)
	}
}

func TestDiskStoreSanitizesExtension(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	rel, err := store.Save(context.Background(), 1, "m", "evil../../x.p/ng", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(rel, "..") {
		t.Errorf("path %q contains traversal", rel)
	}
	full := filepath.Join(store.Root(), filepath.FromSlash(rel))
	if _, err := os.Stat(full); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
}

func TestDiskStoreRemoveMessageFiles(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	if _, err := store.Save(context.Background(), 2, "m1", "a.txt", strings.NewReader("a")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Save(context.Background(), 2, "m2", "b.txt", strings.NewReader("b")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.RemoveMessageFiles(2, "m1"); err != nil {
		t.Fatalf("RemoveMessageFiles failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.Root(), "2", "m1")); !os.IsNotExist(err) {
		t.Errorf("m1 directory still exists")
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "2", "m2")); err != nil {
		t.Errorf("m2 directory should survive: %v", err)
	}

	// 不存在的消息目录删除是幂等的
	if err := store.RemoveMessageFiles(2, "m1"); err != nil {
		t.Errorf("second RemoveMessageFiles failed: %v", err)
	}
}
