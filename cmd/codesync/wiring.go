package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ehrlich-b/codesync/internal/config"
	"github.com/ehrlich-b/codesync/internal/notify"
	"github.com/ehrlich-b/codesync/internal/ntfy"
	"github.com/ehrlich-b/codesync/internal/redirect"
	"github.com/ehrlich-b/codesync/internal/store"
	"github.com/ehrlich-b/codesync/internal/ws"
)

// wsURL turns a configured server address into the room socket URL:
// http(s) becomes ws(s) and a bare host gets the /ws path.
func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func newGateway(c *config.Config) (*ws.Gateway, error) {
	u, err := wsURL(c.Server.URL)
	if err != nil {
		return nil, err
	}
	gw := ws.NewGateway(u)
	gw.ReconnectAttempts = c.Server.ReconnectAttempts
	gw.BaseDelay = c.Server.BaseDelay
	gw.MaxDelay = c.Server.MaxDelay
	return gw, nil
}

// newNotifier prints notices to the terminal, logs them and, when a topic is
// configured, pushes them through ntfy.
func newNotifier(c *config.Config) notify.Notifier {
	n := notify.Multi{notify.NewConsole(os.Stderr), notify.Log{}}
	if c.Notify.NtfyTopic != "" {
		n = append(n, ntfy.New(c.Notify.NtfyTopic, c.Notify.NtfyToken, c.Notify.Events.String()))
	}
	return n
}

// newRedirectGuard opens the configured redirect store. The returned func
// releases it.
func newRedirectGuard(c *config.Config) (*redirect.Guard, func(), error) {
	if c.Redirect.Store != "sqlite" {
		return redirect.NewGuard(redirect.NewMemoryStore()), func() {}, nil
	}
	db, err := store.Open(expandHome(c.Redirect.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("open redirect store: %w", err)
	}
	return redirect.NewGuard(db.KV(c.Redirect.Scope)), func() { db.Close() }, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
