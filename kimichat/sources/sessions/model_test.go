package sessions

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestGenerateTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{"no messages", nil, DefaultTitle},
		{"only assistant", []Message{{Role: RoleAssistant, Content: "hi"}}, DefaultTitle},
		{"short", []Message{{Role: RoleUser, Content: "Hello"}}, "Hello"},
		{"exactly fifty", []Message{{Role: RoleUser, Content: strings.Repeat("b", 50)}}, strings.Repeat("b", 50)},
		{"truncated", []Message{{Role: RoleUser, Content: long}}, strings.Repeat("a", 50) + "..."},
		{
			"first user wins",
			[]Message{{Role: RoleAssistant, Content: "welcome"}, {Role: RoleUser, Content: "first"}, {Role: RoleUser, Content: "second"}},
			"first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateTitle(tt.messages); got != tt.want {
				t.Errorf("GenerateTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateTitleCountsCharacters(t *testing.T) {
	content := strings.Repeat("日", 55)
	got := GenerateTitle([]Message{{Role: RoleUser, Content: content}})
	if !utf8.ValidString(got) {
		t.Fatalf("title split a multibyte character: %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 50 {
		t.Errorf("expected 50 characters before the ellipsis, got %d", n)
	}
}

func TestAddMessageNamesEmptySessionOnce(t *testing.T) {
	s := NewSession(epoch)
	s.AddMessage(NewMessage(RoleUser, "What is Go?", epoch), epoch)
	s.AddMessage(NewMessage(RoleAssistant, "A language.", epoch), epoch)
	s.AddMessage(NewMessage(RoleUser, "Tell me more", epoch), epoch)
	if s.Title != "What is Go?" {
		t.Errorf("title = %q", s.Title)
	}
}

func TestAppendAndRemoveMessage(t *testing.T) {
	s := NewSession(epoch)
	m := NewMessage(RoleAssistant, "", epoch)
	s.AddMessage(m, epoch)

	later := epoch.Add(time.Minute)
	if !s.AppendContent(m.ID, "Hel", later) || !s.AppendContent(m.ID, "lo", later) {
		t.Fatal("AppendContent failed for existing message")
	}
	if got := s.FindMessage(m.ID).Content; got != "Hello" {
		t.Errorf("content = %q", got)
	}
	if !s.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt not advanced")
	}
	if s.AppendContent("missing", "x", later) {
		t.Errorf("AppendContent on missing id should report false")
	}
	if !s.RemoveMessage(m.ID, later) || len(s.Messages) != 0 {
		t.Errorf("RemoveMessage did not remove")
	}
	if s.FindMessage(m.ID) != nil {
		t.Errorf("removed message still found")
	}
}

func TestCloneDoesNotShareMessages(t *testing.T) {
	s := NewSession(epoch)
	s.AddMessage(NewMessage(RoleUser, "hi", epoch), epoch)
	c := s.Clone()
	c.Messages[0].Content = "changed"
	if s.Messages[0].Content != "hi" {
		t.Errorf("clone mutated original")
	}
}
