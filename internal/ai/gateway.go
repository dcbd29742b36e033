// Package ai talks to chat-completion and embedding providers. The
// primary provider (Perplexity) is called through a cost-ordered model
// fallback cascade; an OpenAI-compatible provider is available as a
// direct fallback path.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// attemptTimeout bounds a single upstream call. A timeout is terminal for
// the whole cascade, it does not advance to the next candidate.
const attemptTimeout = 60 * time.Second

var (
	// ErrConfiguration marks missing credentials; raised before any
	// network call and not retryable.
	ErrConfiguration = errors.New("llm configuration error")
	// ErrService marks an upstream failure: non-success status, timeout,
	// or an exhausted fallback cascade.
	ErrService = errors.New("llm service error")
	// ErrInvalidInput marks rejected input such as an empty conversation.
	ErrInvalidInput = errors.New("invalid llm input")
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PerplexityConfig holds settings for the primary provider.
type PerplexityConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	PreferCheapest bool
}

// ChatConfig holds settings for the OpenAI-compatible fallback provider.
type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Gateway routes chat requests to the configured provider. The HTTP
// client is constructed once and injected everywhere; there are no
// package-level client singletons.
type Gateway struct {
	httpClient *http.Client
	provider   string
	perplexity PerplexityConfig
	fallback   ChatConfig
}

// NewGateway builds a gateway for the given provider ("perplexity" or
// "openai"); empty defaults to perplexity.
func NewGateway(provider string, pplx PerplexityConfig, fallback ChatConfig) *Gateway {
	if provider == "" {
		provider = ProviderPerplexity
	}
	if pplx.BaseURL == "" {
		pplx.BaseURL = "https://api.perplexity.ai"
	}
	return &Gateway{
		httpClient: &http.Client{Timeout: attemptTimeout},
		provider:   provider,
		perplexity: pplx,
		fallback:   fallback,
	}
}

const (
	ProviderPerplexity = "perplexity"
	ProviderOpenAI     = "openai"
)

// Provider reports the active chat provider name.
func (g *Gateway) Provider() string {
	return g.provider
}

type callOptions struct {
	forceModel string
	cheapFirst *bool
}

// CallOption tunes one chat call.
type CallOption func(*callOptions)

// WithModel forces a model; it is tried before any cascade candidate.
func WithModel(model string) CallOption {
	return func(o *callOptions) {
		o.forceModel = model
	}
}

// WithCheapFirst overrides the configured cost preference for this call.
func WithCheapFirst(v bool) CallOption {
	return func(o *callOptions) {
		o.cheapFirst = &v
	}
}

func (g *Gateway) applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChatText sends a system+user prompt and returns (text, model used).
func (g *Gateway) ChatText(ctx context.Context, system, user string, temperature float64, opts ...CallOption) (string, string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return g.chat(ctx, messages, temperature, g.applyOptions(opts))
}

// ChatMessages sends a prepared conversation. The conversation must be
// non-empty; this is validated before any network call.
func (g *Gateway) ChatMessages(ctx context.Context, messages []ChatMessage, temperature float64, opts ...CallOption) (string, string, error) {
	if len(messages) == 0 {
		return "", "", fmt.Errorf("messages must be a non-empty list: %w", ErrInvalidInput)
	}
	return g.chat(ctx, messages, temperature, g.applyOptions(opts))
}

// ChatJSON asks for a JSON answer and parses it best-effort: non-JSON or
// non-object output is wrapped into {"summary": raw, "risks": [],
// "checklist": []} instead of failing.
func (g *Gateway) ChatJSON(ctx context.Context, system, user string, temperature float64, opts ...CallOption) (map[string]any, string, error) {
	text, modelUsed, err := g.ChatText(ctx, system, user, temperature, opts...)
	if err != nil {
		return nil, "", err
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		if obj, ok := parsed.(map[string]any); ok {
			return obj, modelUsed, nil
		}
	}
	return map[string]any{
		"summary":   text,
		"risks":     []any{},
		"checklist": []any{},
	}, modelUsed, nil
}

func (g *Gateway) chat(ctx context.Context, messages []ChatMessage, temperature float64, o callOptions) (string, string, error) {
	if g.provider == ProviderPerplexity {
		return g.perplexityChat(ctx, messages, temperature, o)
	}
	text, err := g.openaiComplete(ctx, messages, temperature)
	if err != nil {
		return "", "", err
	}
	return text, g.fallback.Model, nil
}
