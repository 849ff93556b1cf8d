// kimichat/controllers/chat.go
package controllers

import (
	"context"
	"errors"
	"fmt"

	"kimichat/kimichat/config"
	"kimichat/kimichat/middlewares"
	"kimichat/kimichat/services/llm"
	"kimichat/kimichat/utils/logging"
	"kimichat/kimichat/utils/telemetry"
	"kimichat/kimichat/utils/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Provider is the upstream completion API.
type Provider interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
	RunStream(ctx context.Context, req llm.CompletionRequest) (<-chan string, <-chan error, error)
}

type ChatController struct {
	cfg      config.Config
	provider Provider
	tracer   trace.Tracer

	requests       metric.Int64Counter
	upstreamErrors metric.Int64Counter
	streamChunks   metric.Int64Counter
}

func NewChatController(cfg config.Config, provider Provider) *ChatController {
	meter := telemetry.Meter()
	requests, _ := meter.Int64Counter("kimichat.relay.requests")
	upstreamErrors, _ := meter.Int64Counter("kimichat.relay.upstream_errors")
	streamChunks, _ := meter.Int64Counter("kimichat.relay.stream_chunks")
	return &ChatController{
		cfg:            cfg,
		provider:       provider,
		tracer:         telemetry.Tracer(),
		requests:       requests,
		upstreamErrors: upstreamErrors,
		streamChunks:   streamChunks,
	}
}

// Status reports liveness and whether an API key is configured.
func (c *ChatController) Status() types.StatusResponse {
	configured := c.cfg.Configured()
	return types.StatusResponse{
		Status:     "ok",
		Configured: configured,
		Model:      c.cfg.Model,
		BaseURL:    c.cfg.BaseURL,
		Demo:       !configured,
	}
}

// Ready reports the demo condition before any input is inspected.
func (c *ChatController) Ready() error {
	if !c.cfg.Configured() {
		return &RelayError{
			Kind:    KindDemo,
			Message: "Demo mode: Please configure OPENROUTER_API_KEY to enable live chat",
		}
	}
	return nil
}

// InvalidBody wraps a request decoding failure.
func InvalidBody(err error) error {
	return &RelayError{Kind: KindInvalidInput, Message: "Invalid request body", Cause: err}
}

func (c *ChatController) prepare(ctx context.Context, req types.ChatRequest) (llm.CompletionRequest, error) {
	if err := c.Ready(); err != nil {
		return llm.CompletionRequest{}, err
	}
	if len(req.Messages) == 0 {
		return llm.CompletionRequest{}, invalidInput("Messages array is required and cannot be empty")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
		default:
			return llm.CompletionRequest{}, invalidInput(fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
		}
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	return llm.CompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		User:        middlewares.VisitorID(ctx),
	}, nil
}

func (c *ChatController) upstreamFailed(ctx context.Context, span trace.Span, err error) *RelayError {
	re := AsRelayError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(re.Kind))
	c.upstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(re.Kind))))
	logging.ErrorLogger.Error("upstream chat error",
		zap.String("kind", string(re.Kind)),
		zap.String("visitor_id", middlewares.VisitorID(ctx)),
		zap.Error(err))
	return re
}

// Chat relays a conversation and waits for the full completion.
func (c *ChatController) Chat(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "json")))
	creq, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "openrouter.complete",
		trace.WithAttributes(attribute.String("model", creq.Model), attribute.Int("messages", len(creq.Messages))))
	defer span.End()

	completion, err := c.provider.Complete(ctx, creq)
	if err != nil {
		if errors.Is(err, llm.ErrNoChoices) {
			return nil, &RelayError{Kind: KindInternal, Message: "No response from AI model", Cause: err}
		}
		return nil, c.upstreamFailed(ctx, span, err)
	}

	logging.AppLogger.Info("chat completed",
		zap.String("model", completion.Model),
		zap.String("visitor_id", creq.User),
		zap.Int("content_len", len(completion.Message.Content)))
	return &types.ChatResponse{
		Success: true,
		Message: completion.Message,
		Model:   completion.Model,
		Usage:   completion.Usage,
	}, nil
}

// ChatStream opens the upstream stream. Failures before the first byte are
// returned as *RelayError so they still map to a status; later ones arrive on
// the error channel.
func (c *ChatController) ChatStream(ctx context.Context, req types.ChatRequest) (<-chan string, <-chan error, error) {
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "stream")))
	creq, err := c.prepare(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := c.tracer.Start(ctx, "openrouter.stream",
		trace.WithAttributes(attribute.String("model", creq.Model), attribute.Int("messages", len(creq.Messages))))

	upstream, upstreamErr, err := c.provider.RunStream(ctx, creq)
	if err != nil {
		defer span.End()
		return nil, nil, c.upstreamFailed(ctx, span, err)
	}

	ch := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer span.End()
		defer close(errCh)
		defer close(ch)
		var chunks int64
		for delta := range upstream {
			chunks++
			select {
			case ch <- delta:
			case <-ctx.Done():
				// drain so the upstream reader can exit
				for range upstream {
				}
				c.streamChunks.Add(context.Background(), chunks)
				return
			}
		}
		c.streamChunks.Add(context.Background(), chunks)
		span.SetAttributes(attribute.Int64("chunks", chunks))
		if err := <-upstreamErr; err != nil {
			errCh <- c.upstreamFailed(context.Background(), span, err)
		}
	}()
	return ch, errCh, nil
}
