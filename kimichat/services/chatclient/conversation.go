package chatclient

import (
	"context"
	"errors"
	"strings"
	"sync"

	"kimichat/kimichat/sources/sessions"
	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/types"

	"go.uber.org/zap"
)

var (
	ErrEmptyInput = errors.New("message is empty")
	ErrBusy       = errors.New("a reply is still being generated")
	ErrNoSession  = errors.New("no session selected")
)

// GenerationState tracks the assistant placeholder of the latest send.
type GenerationState string

const (
	StateIdle      GenerationState = ""
	StatePending   GenerationState = "pending"
	StateStreaming GenerationState = "streaming"
	StateFinalized GenerationState = "finalized"
	StateDiscarded GenerationState = "discarded"
)

// Streamer is the part of Client a Conversation needs.
type Streamer interface {
	Stream(ctx context.Context, messages []types.ChatMessage, onDelta func(string)) error
}

// Conversation owns the selected session and allows one send at a time.
type Conversation struct {
	store  *sessions.Store
	client Streamer

	mu      sync.Mutex
	busy    bool
	state   GenerationState
	current *sessions.Session
}

func NewConversation(store *sessions.Store, client Streamer) *Conversation {
	return &Conversation{store: store, client: client}
}

// Open selects the most recent session, creating one if the store is empty.
func (c *Conversation) Open(ctx context.Context) error {
	all, err := c.store.GetAllSessions(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return c.NewSession(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	s := all[0]
	c.current = &s
	c.state = StateIdle
	return nil
}

func (c *Conversation) NewSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	s := sessions.NewSession(c.store.Now())
	if err := c.store.SaveSession(ctx, s); err != nil {
		return err
	}
	c.current = &s
	c.state = StateIdle
	return nil
}

func (c *Conversation) Select(ctx context.Context, id string) error {
	s, err := c.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.current = s
	c.state = StateIdle
	return nil
}

// Delete removes a session. Deleting the selected one moves the selection
// to the most recent remaining session.
func (c *Conversation) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	selected := c.current != nil && c.current.ID == id
	c.mu.Unlock()

	if err := c.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	if selected {
		return c.Open(ctx)
	}
	return nil
}

// ClearAll drops every session and starts a fresh one.
func (c *Conversation) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()
	if err := c.store.ClearAllSessions(ctx); err != nil {
		return err
	}
	return c.NewSession(ctx)
}

// Current returns a copy of the selected session.
func (c *Conversation) Current() (sessions.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return sessions.Session{}, false
	}
	return c.current.Clone(), true
}

// Rename sets the title of the selected session.
func (c *Conversation) Rename(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	if c.current == nil {
		return ErrNoSession
	}
	if err := c.store.UpdateSessionTitle(ctx, c.current.ID, title); err != nil {
		return err
	}
	s, err := c.store.GetSession(ctx, c.current.ID)
	if err != nil {
		return err
	}
	c.current = s
	return nil
}

func (c *Conversation) Sessions(ctx context.Context) ([]sessions.Session, error) {
	return c.store.GetAllSessions(ctx)
}

func (c *Conversation) State() GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// persist saves a snapshot of the current session. The caller holds c.mu.
func (c *Conversation) persist(ctx context.Context) error {
	return c.store.SaveSession(ctx, c.current.Clone())
}

// Send appends a user message, streams the assistant reply into a
// placeholder and persists the result. If the user message cannot be saved
// it is dropped and nothing is sent. On any later failure the placeholder is
// removed and the user message is kept.
func (c *Conversation) Send(ctx context.Context, text string, onDelta func(string)) (*sessions.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.current == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	c.busy = true
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	now := c.store.Now()
	before := c.current.Clone()
	c.current.AddMessage(sessions.NewMessage(sessions.RoleUser, text, now), now)
	history := c.current.History()
	if err := c.persist(ctx); err != nil {
		// keep memory in step with what the store holds
		*c.current = before
		c.mu.Unlock()
		return nil, err
	}
	placeholder := sessions.NewMessage(sessions.RoleAssistant, "", now)
	c.current.AddMessage(placeholder, now)
	c.state = StatePending
	c.mu.Unlock()

	err := c.client.Stream(ctx, history, func(delta string) {
		c.mu.Lock()
		c.current.AppendContent(placeholder.ID, delta, c.store.Now())
		c.state = StateStreaming
		c.mu.Unlock()
		if onDelta != nil {
			onDelta(delta)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.current.RemoveMessage(placeholder.ID, c.store.Now())
		c.state = StateDiscarded
		// the caller's context may be the reason the stream ended
		if saveErr := c.persist(context.WithoutCancel(ctx)); saveErr != nil {
			logging.ErrorLogger.Error("Failed to persist session after discard", zap.Error(saveErr))
		}
		return nil, err
	}

	c.state = StateFinalized
	reply := *c.current.FindMessage(placeholder.ID)
	if err := c.persist(ctx); err != nil {
		return &reply, err
	}
	return &reply, nil
}
