package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/codesync/internal/llm"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Redirect  RedirectConfig  `yaml:"redirect"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	URL               string        `yaml:"url"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	Listen            string        `yaml:"listen"` // address for `codesync serve`
}

type InferenceConfig struct {
	Provider      string        `yaml:"provider"` // "http", "openai" or "dummy"
	URL           string        `yaml:"url"`
	Model         string        `yaml:"model"`
	Private       bool          `yaml:"private"`
	APIKey        string        `yaml:"api_key,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// RedirectConfig picks where the redirect flag lives. "memory" forgets it
// with the process; "sqlite" keeps it in Path under Scope.
type RedirectConfig struct {
	Store string `yaml:"store"`
	Path  string `yaml:"path,omitempty"`
	Scope string `yaml:"scope"`
}

type NotifyConfig struct {
	NtfyTopic string    `yaml:"ntfy_topic,omitempty"`
	NtfyToken string    `yaml:"ntfy_token,omitempty"`
	Events    EventList `yaml:"events,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// EventList is a list of notice levels. YAML may give it as a sequence or as
// one comma-separated string ("error,success").
type EventList []string

// UnmarshalYAML handles both scalar strings and sequences.
func (el *EventList) UnmarshalYAML(value *yaml.Node) error {
	var out EventList
	switch value.Kind {
	case yaml.ScalarNode:
		for _, e := range strings.Split(value.Value, ",") {
			if e = strings.TrimSpace(e); e != "" {
				out = append(out, e)
			}
		}
	case yaml.SequenceNode:
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return &yaml.TypeError{Errors: []string{"events: expected string items"}}
			}
			out = append(out, strings.TrimSpace(item.Value))
		}
	default:
		return &yaml.TypeError{Errors: []string{"events: expected string or sequence"}}
	}
	*el = out
	return nil
}

// String joins the list the way ntfy.New expects it.
func (el EventList) String() string {
	return strings.Join(el, ",")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:               "ws://localhost:3000/ws",
			ReconnectAttempts: 5,
			BaseDelay:         time.Second,
			MaxDelay:          10 * time.Second,
			Listen:            ":3000",
		},
		Inference: InferenceConfig{
			Provider: "http",
			URL:      "https://text.pollinations.ai/openai",
			Model:    llm.DefaultModel,
			Private:  true,
			Timeout:  llm.DefaultTimeout,
		},
		Redirect: RedirectConfig{
			Store: "memory",
			Scope: "default",
		},
		Notify: NotifyConfig{
			Events: EventList{"error"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file on top of Default. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Override with environment variables if present
func (c *Config) applyEnv() error {
	if v := os.Getenv("CODESYNC_SERVER"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("CODESYNC_INFERENCE_URL"); v != "" {
		c.Inference.URL = v
	}
	if v := os.Getenv("CODESYNC_API_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("CODESYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODESYNC_RECONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CODESYNC_RECONNECT_ATTEMPTS: %w", err)
		}
		c.Server.ReconnectAttempts = n
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("server.url must be a ws://, wss://, http:// or https:// URL")
	}
	if c.Server.ReconnectAttempts < 0 {
		return fmt.Errorf("server.reconnect_attempts must not be negative")
	}
	if c.Server.BaseDelay <= 0 || c.Server.MaxDelay < c.Server.BaseDelay {
		return fmt.Errorf("server.base_delay must be positive and not above server.max_delay")
	}

	switch c.Inference.Provider {
	case "http", "openai", "dummy":
	default:
		return fmt.Errorf("inference.provider must be 'http', 'openai' or 'dummy'")
	}
	if c.Inference.Provider == "http" && c.Inference.URL == "" {
		return fmt.Errorf("inference.url is required for the http provider")
	}
	if c.Inference.RatePerMinute < 0 {
		return fmt.Errorf("inference.rate_per_minute must not be negative")
	}

	switch c.Redirect.Store {
	case "memory":
	case "sqlite":
		if c.Redirect.Path == "" {
			return fmt.Errorf("redirect.path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("redirect.store must be 'memory' or 'sqlite'")
	}

	for _, e := range c.Notify.Events {
		if e != "success" && e != "error" {
			return fmt.Errorf("notify.events: unknown level %q", e)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}

// LLM returns the inference provider settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider:      c.Inference.Provider,
		URL:           c.Inference.URL,
		Model:         c.Inference.Model,
		APIKey:        c.Inference.APIKey,
		Timeout:       c.Inference.Timeout,
		RatePerMinute: c.Inference.RatePerMinute,
	}
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
