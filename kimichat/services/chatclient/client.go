// Package chatclient talks to the chat relay and keeps conversations in a
// session store.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	httputils "kimichat/kimichat/utils/http"
	"kimichat/kimichat/utils/types"
)

// APIError is a non-2xx reply from the relay.
type APIError struct {
	StatusCode int
	Message    string
	IsDemo     bool
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sends a visitor token as a bearer credential.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

func (c *Client) chatURL() string {
	return c.baseURL + "/chat"
}

func apiError(err error) error {
	var se *httputils.StatusError
	if !errors.As(err, &se) {
		return err
	}
	out := &APIError{StatusCode: se.StatusCode, Message: se.Body}
	var body types.ErrorResponse
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error != "" {
		out.Message = body.Error
		out.IsDemo = body.IsDemo
		out.Code = body.Code
	}
	return out
}

// Status reports whether the relay is configured.
func (c *Client) Status(ctx context.Context) (*types.StatusResponse, error) {
	var resp types.StatusResponse
	if err := httputils.GetJSON(ctx, c.httpClient, c.chatURL(), c.headers(), &resp); err != nil {
		return nil, apiError(err)
	}
	return &resp, nil
}

// Complete sends a non-streaming request.
func (c *Client) Complete(ctx context.Context, messages []types.ChatMessage) (*types.ChatResponse, error) {
	var resp types.ChatResponse
	req := types.ChatRequest{Messages: messages}
	if err := httputils.PostJSON(ctx, c.httpClient, c.chatURL(), c.headers(), req, &resp); err != nil {
		return nil, apiError(err)
	}
	return &resp, nil
}

// Stream sends a streaming request and blocks until the stream completes,
// fails or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, messages []types.ChatMessage, onDelta func(string)) error {
	req := types.ChatRequest{Messages: messages, Stream: true}
	body, err := httputils.PostStream(ctx, c.httpClient, c.chatURL(), c.headers(), req)
	if err != nil {
		return apiError(err)
	}
	defer body.Close()
	return ReadStream(ctx, body, onDelta)
}
