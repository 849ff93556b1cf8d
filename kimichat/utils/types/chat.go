// kimichat/utils/types/chat.go
package types

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one role/content pair on the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the non-streaming reply of POST /chat.
type ChatResponse struct {
	Success bool        `json:"success"`
	Message ChatMessage `json:"message"`
	Model   string      `json:"model"`
	Usage   *Usage      `json:"usage,omitempty"`
}

// StatusResponse is the reply of GET /chat.
type StatusResponse struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
	Model      string `json:"model"`
	BaseURL    string `json:"baseURL"`
	Demo       bool   `json:"demo"`
}

// ErrorResponse is every non-2xx body. Code is set only where the status
// alone is ambiguous, e.g. a missing visitor token versus a bad upstream key.
type ErrorResponse struct {
	Error  string `json:"error"`
	IsDemo bool   `json:"isDemo,omitempty"`
	Code   string `json:"code,omitempty"`
}

// StreamChunk is the payload of one data: event.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WSRequest is the first frame of a /chat/ws conversation.
type WSRequest struct {
	Token       string      `json:"token,omitempty"`
	ChatRequest ChatRequest `json:"chat_request"`
}

// WSFrame is every frame the relay sends over /chat/ws.
type WSFrame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
	IsDemo  bool   `json:"isDemo,omitempty"`
	Code    string `json:"code,omitempty"`
}

type VisitorTokenResponse struct {
	Token     string `json:"token"`
	VisitorID string `json:"visitor_id"`
	ExpiresAt int64  `json:"expires_at"`
}
