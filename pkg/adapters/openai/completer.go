// Package openai streams chat completions from an OpenAI-compatible API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const providerName = "openai"

// Config holds the connection settings of the completion backend.
type Config struct {
	APIKey string

	// BaseURL defaults to "https://api.openai.com".
	BaseURL string

	// Model defaults to "gpt-4o".
	Model string

	// Timeout bounds a whole completion, streaming included. Defaults to 60s.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string
}

// Completer implements ports.Completer over server-sent events.
type Completer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ ports.Completer = (*Completer)(nil)

// Option configures the Completer.
type Option func(*Completer)

// WithLogger configures a logger for the Completer.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Completer) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Completer) {
		c.client = client
	}
}

// New creates a Completer, filling unset config fields with defaults.
func New(cfg Config, opts ...Option) *Completer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	c := &Completer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Completer) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
}

// Stream posts the prompt and returns the content deltas as chunks.
func (c *Completer) Stream(ctx context.Context, prompt []domain.Message) (<-chan domain.Chunk, error) {
	payload, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: prompt, Stream: true})
	if err != nil {
		return nil, c.fail(domain.KindMalformedRequest, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(domain.KindMalformedRequest, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.Debug("Requesting completion", "model", c.cfg.Model, "messages", len(prompt))
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, c.fail(classifyTransport(err), 0, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.fail(classifyStatus(resp.StatusCode), resp.StatusCode, errors.New(readErrorMessage(resp.Body)))
	}

	return c.readSSE(ctx, resp.Body), nil
}

func (c *Completer) readSSE(ctx context.Context, body io.ReadCloser) <-chan domain.Chunk {
	ch := make(chan domain.Chunk)
	go func() {
		defer body.Close()
		defer close(ch)

		send := func(chunk domain.Chunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					send(domain.Chunk{Err: c.fail(classifyTransport(err), 0, err)})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var delta chatDelta
			if err := json.Unmarshal([]byte(data), &delta); err != nil {
				send(domain.Chunk{Err: c.fail(domain.KindUnknown, 0, fmt.Errorf("malformed stream event: %w", err))})
				return
			}
			for _, choice := range delta.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(domain.Chunk{Text: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return ch
}

func (c *Completer) fail(kind domain.ErrorKind, status int, err error) error {
	c.logger.Warn("Completion failed", "kind", kind, "status", status, "error", err)
	return &domain.CompletionError{Kind: kind, Provider: providerName, StatusCode: status, Err: err}
}

func classifyStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return domain.KindMalformedRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.KindTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return domain.KindUnreachable
	default:
		return domain.KindUnknown
	}
}

func classifyTransport(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.KindUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.KindUnreachable
	}
	return domain.KindUnknown
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "unreadable error response"
	}
	var ae apiError
	if json.Unmarshal(data, &ae) == nil && ae.Error.Message != "" {
		return ae.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "empty error response"
	}
	return msg
}
