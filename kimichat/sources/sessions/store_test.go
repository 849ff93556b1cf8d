package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kimichat/kimichat/sources/blob"
)

var epoch = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	t := epoch
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore() (*Store, *blob.MemoryStorage) {
	mem := blob.NewMemoryStorage()
	return NewStore(mem, WithClock(fixedClock())), mem
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	s := NewSession(epoch)
	s.AddMessage(NewMessage(RoleUser, "Hello there", epoch), epoch)
	s.AddMessage(NewMessage(RoleAssistant, "Hi!", epoch), epoch)
	if err := store.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := store.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "Hello there" || len(got.Messages) != 2 {
		t.Fatalf("unexpected session %+v", got)
	}
	for i := range s.Messages {
		want, have := s.Messages[i], got.Messages[i]
		if want.ID != have.ID || want.Role != have.Role || want.Content != have.Content || !want.Timestamp.Equal(have.Timestamp) {
			t.Errorf("message %d = %+v, want %+v", i, have, want)
		}
	}
	if !got.CreatedAt.Equal(s.CreatedAt) || !got.UpdatedAt.Equal(s.UpdatedAt) {
		t.Errorf("timestamps changed across persistence")
	}
}

func TestSaveInsertsAtHeadAndReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	a := NewSession(epoch)
	b := NewSession(epoch)
	_ = store.SaveSession(ctx, a)
	_ = store.SaveSession(ctx, b)

	all, _ := store.GetAllSessions(ctx)
	if len(all) != 2 || all[0].ID != b.ID || all[1].ID != a.ID {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	a.Title = "renamed"
	_ = store.SaveSession(ctx, a)
	all, _ = store.GetAllSessions(ctx)
	if len(all) != 2 || all[1].ID != a.ID || all[1].Title != "renamed" {
		t.Fatalf("replace should keep position, got %v", ids(all))
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	a, b := NewSession(epoch), NewSession(epoch)
	_ = store.SaveSession(ctx, a)
	_ = store.SaveSession(ctx, b)

	if err := store.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(ctx, a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("deleted session still found: %v", err)
	}
	all, _ := store.GetAllSessions(ctx)
	if len(all) != 1 || all[0].ID != b.ID {
		t.Errorf("unexpected remaining sessions %v", ids(all))
	}
	if err := store.DeleteSession(ctx, "unknown"); err != nil {
		t.Errorf("deleting unknown id should be a no-op: %v", err)
	}
}

func TestUpdateSessionTitle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	s := NewSession(epoch)
	_ = store.SaveSession(ctx, s)
	if err := store.UpdateSessionTitle(ctx, s.ID, "Trip planning"); err != nil {
		t.Fatalf("UpdateSessionTitle: %v", err)
	}
	got, _ := store.GetSession(ctx, s.ID)
	if got.Title != "Trip planning" || !got.UpdatedAt.After(s.UpdatedAt) {
		t.Errorf("title update not applied: %+v", got)
	}
	if err := store.UpdateSessionTitle(ctx, "unknown", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestClearAllSessions(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()

	_ = store.SaveSession(ctx, NewSession(epoch))
	if err := store.ClearAllSessions(ctx); err != nil {
		t.Fatalf("ClearAllSessions: %v", err)
	}
	all, err := store.GetAllSessions(ctx)
	if err != nil || len(all) != 0 {
		t.Errorf("expected empty store, got %d sessions, err %v", len(all), err)
	}
	if _, ok, _ := mem.GetItem(ctx, StorageKey); ok {
		t.Errorf("blob should be removed")
	}
}

func TestCorruptBlobReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()
	_ = mem.SetItem(ctx, StorageKey, "{not json")

	all, err := store.GetAllSessions(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("corrupt blob should read as empty, got %d, %v", len(all), err)
	}
	if _, err := store.GetSession(ctx, "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLegacyArrayIsUpgradedOnWrite(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()
	legacy := `[{"id":"old","title":"Old chat","messages":[],"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"}]`
	_ = mem.SetItem(ctx, StorageKey, legacy)

	got, err := store.GetSession(ctx, "old")
	if err != nil || got.Title != "Old chat" {
		t.Fatalf("legacy session not readable: %+v %v", got, err)
	}

	_ = store.SaveSession(ctx, NewSession(epoch))
	raw, _, _ := mem.GetItem(ctx, StorageKey)
	if !strings.HasPrefix(raw, `{"version":1,`) {
		t.Errorf("blob not upgraded: %s", raw)
	}
	all, _ := store.GetAllSessions(ctx)
	if len(all) != 2 || all[1].ID != "old" {
		t.Errorf("legacy session lost during upgrade: %v", ids(all))
	}
}

func TestNewerSchemaIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	store, mem := newTestStore()
	future := `{"version":2,"sessions":[]}`
	_ = mem.SetItem(ctx, StorageKey, future)

	if _, err := store.GetAllSessions(ctx); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if err := store.SaveSession(ctx, NewSession(epoch)); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("save over newer schema should fail, got %v", err)
	}
	if raw, _, _ := mem.GetItem(ctx, StorageKey); raw != future {
		t.Errorf("newer blob was rewritten: %s", raw)
	}
}

func TestNilStorageIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	s := NewSession(epoch)
	if err := store.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	all, err := store.GetAllSessions(ctx)
	if err != nil || len(all) != 0 {
		t.Errorf("expected empty list, got %d, %v", len(all), err)
	}
	if _, err := store.GetSession(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.DeleteSession(ctx, s.ID); err != nil {
		t.Errorf("DeleteSession: %v", err)
	}
	if err := store.ClearAllSessions(ctx); err != nil {
		t.Errorf("ClearAllSessions: %v", err)
	}
}

func ids(sessions []Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
