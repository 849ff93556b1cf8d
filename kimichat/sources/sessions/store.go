package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kimichat/kimichat/sources/blob"
	"kimichat/kimichat/utils/logging"

	"go.uber.org/zap"
)

const (
	StorageKey    = "kimi-chat-sessions"
	SchemaVersion = 1
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnsupportedVersion = errors.New("unsupported session schema version")
)

// document is the persisted form. Version 0 was a bare JSON array of sessions.
type document struct {
	Version  int       `json:"version"`
	Sessions []Session `json:"sessions"`
}

// Store keeps the whole session collection in a single blob, most recently
// created first. Every operation reads and rewrites the full collection.
type Store struct {
	storage blob.Storage
	key     string
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore wraps storage. A nil storage gives a store whose reads are empty
// and whose writes do nothing.
func NewStore(storage blob.Storage, opts ...Option) *Store {
	s := &Store{storage: storage, key: StorageKey, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the store's clock, shared with callers that stamp messages.
func (s *Store) Now() time.Time {
	return s.now()
}

func decode(raw string) ([]Session, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var legacy []Session
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			return nil, err
		}
		return legacy, nil
	}
	var doc document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc.Version > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc.Sessions, nil
}

func (s *Store) load(ctx context.Context) ([]Session, error) {
	if s.storage == nil {
		return nil, nil
	}
	raw, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if !ok {
		return nil, nil
	}
	sessions, err := decode(raw)
	if errors.Is(err, ErrUnsupportedVersion) {
		return nil, err
	}
	if err != nil {
		logging.ErrorLogger.Error("Failed to parse chat sessions", zap.Error(err))
		return nil, nil
	}
	return sessions, nil
}

func (s *Store) write(ctx context.Context, sessions []Session) error {
	if sessions == nil {
		sessions = []Session{}
	}
	b, err := json.Marshal(document{Version: SchemaVersion, Sessions: sessions})
	if err != nil {
		return err
	}
	if err := s.storage.SetItem(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return nil
}

func (s *Store) GetAllSessions(ctx context.Context) ([]Session, error) {
	return s.load(ctx)
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	sessions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

// SaveSession replaces the session with the same id or inserts it at the head.
func (s *Store) SaveSession(ctx context.Context, session Session) error {
	if s.storage == nil {
		return nil
	}
	sessions, err := s.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append([]Session{session}, sessions...)
	}
	return s.write(ctx, sessions)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if s.storage == nil {
		return nil
	}
	sessions, err := s.load(ctx)
	if err != nil {
		return err
	}
	filtered := sessions[:0]
	for _, sess := range sessions {
		if sess.ID != id {
			filtered = append(filtered, sess)
		}
	}
	return s.write(ctx, filtered)
}

func (s *Store) UpdateSessionTitle(ctx context.Context, id, title string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	session.Title = title
	session.UpdatedAt = s.now().UTC()
	return s.SaveSession(ctx, *session)
}

func (s *Store) ClearAllSessions(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.RemoveItem(ctx, s.key)
}
