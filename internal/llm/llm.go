package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for inference backends.
type Provider interface {
	// Complete sends one request and returns the reply text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Name returns the provider name
	Name() string
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is the body POSTed to the inference endpoint.
type Request struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	Private  bool      `json:"private"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultModel   = "mistral"
	DefaultTimeout = 60 * time.Second
)

// Config selects and configures a provider.
type Config struct {
	Provider      string // "http", "openai" or "dummy"
	URL           string
	Model         string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int // 0 disables throttling
}

// New creates a provider based on config.
func New(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	var p Provider
	switch cfg.Provider {
	case "", "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("inference url is required for provider %q", "http")
		}
		p = NewHTTPProvider(cfg.URL, cfg.APIKey, cfg.Timeout)
	case "openai":
		p = NewOpenAIProvider(cfg.APIKey, cfg.URL)
	case "dummy":
		p = NewDummyProvider(0)
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
	if cfg.RatePerMinute > 0 {
		p = NewRateLimited(p, cfg.RatePerMinute)
	}
	return p, nil
}
