package dao

import (
	"context"
	"testing"

	"kimichat/kimichat/sources/psql/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDAO(t *testing.T) *BlobDAO {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// every pooled connection would get its own :memory: database
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Blob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewBlobDAO(db)
}

func TestBlobDAORoundTrip(t *testing.T) {
	dao := setupTestDAO(t)
	ctx := context.Background()

	if _, ok, err := dao.GetItem(ctx, "kimi-chat-sessions"); err != nil || ok {
		t.Fatalf("expected no blob, got ok=%v err=%v", ok, err)
	}
	if err := dao.SetItem(ctx, "kimi-chat-sessions", "v1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := dao.SetItem(ctx, "kimi-chat-sessions", "v2"); err != nil {
		t.Fatalf("SetItem update: %v", err)
	}
	v, ok, err := dao.GetItem(ctx, "kimi-chat-sessions")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("GetItem = %q %v %v", v, ok, err)
	}

	var count int64
	dao.DB.Model(&models.Blob{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row after upsert, got %d", count)
	}

	if err := dao.RemoveItem(ctx, "kimi-chat-sessions"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok, _ := dao.GetItem(ctx, "kimi-chat-sessions"); ok {
		t.Errorf("blob still present after RemoveItem")
	}
}
