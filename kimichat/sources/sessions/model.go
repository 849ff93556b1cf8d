// Package sessions persists chat sessions as one serialized collection.
package sessions

import (
	"time"

	"kimichat/kimichat/utils/types"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	DefaultTitle   = "New Chat"
	titleMaxLength = 50
	titleEllipsis  = "..."
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewSession(now time.Time) Session {
	now = now.UTC()
	return Session{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: now.UTC(),
	}
}

// GenerateTitle derives a title from the first user message: its first 50
// characters, with an ellipsis only when something was cut.
func GenerateTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleMaxLength {
			return string(runes[:titleMaxLength]) + titleEllipsis
		}
		return m.Content
	}
	return DefaultTitle
}

// AddMessage appends m. A user message added to an empty session names it;
// the title is never regenerated afterwards.
func (s *Session) AddMessage(m Message, now time.Time) {
	if len(s.Messages) == 0 && m.Role == RoleUser {
		s.Title = GenerateTitle([]Message{m})
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = now.UTC()
}

// AppendContent grows the content of message id in place.
func (s *Session) AppendContent(id, delta string, now time.Time) bool {
	m := s.FindMessage(id)
	if m == nil {
		return false
	}
	m.Content += delta
	s.UpdatedAt = now.UTC()
	return true
}

func (s *Session) RemoveMessage(id string, now time.Time) bool {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
			s.UpdatedAt = now.UTC()
			return true
		}
	}
	return false
}

func (s *Session) FindMessage(id string) *Message {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return &s.Messages[i]
		}
	}
	return nil
}

// History is the role/content list sent to the relay.
func (s *Session) History() []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, types.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// Clone returns a copy that shares no message storage with s.
func (s Session) Clone() Session {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}
