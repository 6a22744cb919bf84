// Package ai talks to the chat-completion provider that powers the study assistant.
//
// The rest of the portal only sees the Completer interface, so the provider's
// wire format stays in this package. Any OpenAI-compatible endpoint works
// (routeway.ai by default, or a local server for development).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer returns the assistant's reply to messages using model.
// An empty reply is not an error; the caller decides what to show.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai: provider returned status %d: %s", e.Code, e.Body)
}

// ErrNoChoices means the provider answered 200 with an empty choices array.
var ErrNoChoices = errors.New("ai: response contained no choices")

// Sampling parameters sent with every request.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000

	// maxErrorBody caps how much of an error response ends up in logs.
	maxErrorBody = 512
)

// Config holds the AI_* settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an OpenAI-compatible /chat/completions client.
type Client struct {
	http    *http.Client
	baseURL string
}

var _ Completer = (*Client)(nil)

// NewClient builds a Client whose transport adds "Authorization: Bearer <key>".
//
// BEARER AUTH VIA OAUTH2:
// The provider uses a static API key as an OAuth2 bearer token.
// oauth2.NewClient wraps the transport so every request carries the header
// without the request code knowing about it. The ctx may carry a custom base
// client under oauth2.HTTPClient (tests use this to reach httptest servers).
func NewClient(ctx context.Context, cfg Config) *Client {
	var hc *http.Client
	if cfg.APIKey != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
		hc = oauth2.NewClient(ctx, src)
	} else {
		hc = &http.Client{}
	}
	// The timeout bounds the whole exchange, body included.
	hc.Timeout = cfg.Timeout

	return &Client{http: hc, baseURL: cfg.BaseURL}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete posts messages to {baseURL}/chat/completions and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ai: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: calling %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai: decoding response from %s: %w", model, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoChoices
	}
	return out.Choices[0].Message.Content, nil
}
