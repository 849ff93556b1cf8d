package storage

import (
	"context"
	"testing"

	"kimichat/kimichat/config"
)

func TestObjectKey(t *testing.T) {
	m := &MinIOStorage{bucket: "kimichat", prefix: "sessions"}
	if got := m.objectKey("kimi-chat-sessions"); got != "sessions/kimi-chat-sessions.json" {
		t.Errorf("objectKey() = %q", got)
	}
}

func TestNewMinIOStorageRejectsBadEndpoint(t *testing.T) {
	cfg := config.Config{MinIOEndpoint: "invalid host!", MinIOBucket: "kimichat"}
	if _, err := NewMinIOStorage(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for an invalid endpoint")
	}
}
