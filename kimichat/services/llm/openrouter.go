// kimichat/services/llm/openrouter.go
package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kimichat/kimichat/config"
	httputils "kimichat/kimichat/utils/http"
	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/types"

	"go.uber.org/zap"
)

var ErrNoChoices = errors.New("no choices returned")

// CompletionRequest is what the relay asks of the upstream provider.
type CompletionRequest struct {
	Model       string
	Messages    []types.ChatMessage
	MaxTokens   int
	Temperature float64
	User        string // opaque end-user id, forwarded as the provider's "user"
}

type Completion struct {
	Message types.ChatMessage
	Model   string
	Usage   *types.Usage
}

type OpenRouterClient struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	client  *http.Client
}

// NewOpenRouterClient talks to any OpenAI-compatible /chat/completions endpoint;
// OpenRouter additionally reads the HTTP-Referer and X-Title headers.
func NewOpenRouterClient(cfg config.Config, client *http.Client) *OpenRouterClient {
	if client == nil {
		// no client timeout: max_tokens bounds how long a completion runs.
		client = &http.Client{}
	}
	return &OpenRouterClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		referer: cfg.SiteURL,
		title:   cfg.SiteName,
		client:  client,
	}
}

type completionPayload struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
	User        string              `json:"user,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message types.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *types.Usage `json:"usage"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenRouterClient) url() string {
	return fmt.Sprintf("%s/chat/completions", c.baseURL)
}

func (c *OpenRouterClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"HTTP-Referer":  c.referer,
		"X-Title":       c.title,
	}
}

func (c *OpenRouterClient) payload(req CompletionRequest, stream bool) completionPayload {
	return completionPayload{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.User,
	}
}

// Complete runs a non-streaming chat completion.
func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	defer logging.LogDuration(ctx, "openrouter_complete")()

	var resp completionResponse
	if err := httputils.PostJSON(ctx, c.client, c.url(), c.headers(), c.payload(req, false), &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	msg := resp.Choices[0].Message
	if msg.Role == "" {
		msg.Role = types.RoleAssistant
	}
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &Completion{Message: msg, Model: model, Usage: resp.Usage}, nil
}

// RunStream opens a streaming completion. Errors opening the stream (including
// upstream status errors) are returned directly; later failures arrive on the
// error channel. Both channels are closed when the stream ends.
func (c *OpenRouterClient) RunStream(ctx context.Context, req CompletionRequest) (<-chan string, <-chan error, error) {
	defer logging.LogDuration(ctx, "openrouter_open_stream")()

	body, err := httputils.PostStream(ctx, c.client, c.url(), c.headers(), c.payload(req, true))
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			close(ch)
			close(errCh)
			body.Close()
		}()

		reader := bufio.NewReader(body)

		for {
			line, err := reader.ReadString('\n')
			if err != nil && !(err == io.EOF && line != "") {
				if err == io.EOF {
					return
				}
				if ctx.Err() != nil {
					logging.AppLogger.Info("openrouter stream context cancelled")
					return
				}
				errCh <- fmt.Errorf("read upstream stream: %w", err)
				return
			}

			line = strings.TrimSpace(line)
			// blank separators and ": OPENROUTER PROCESSING" style comments
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logging.ErrorLogger.Error("openrouter stream JSON parse error",
					zap.Error(err), zap.String("raw_line", data))
				continue
			}
			if chunk.Error != nil {
				errCh <- &httputils.StatusError{StatusCode: chunk.Error.Code, Body: chunk.Error.Message}
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case ch <- choice.Delta.Content:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, errCh, nil
}
