package ntfy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ehrlich-b/codesync/internal/logger"
	"github.com/ehrlich-b/codesync/internal/notify"
)

// Client sends push notifications via ntfy.sh (or a self-hosted ntfy server).
// It implements notify.Notifier so session notices can reach a phone when the
// terminal is out of sight.
type Client struct {
	url    string // full URL: https://ntfy.sh/{topic}
	token  string // optional bearer token for reserved topics
	events map[string]bool
	http   *http.Client

	inflight sync.WaitGroup
}

// New creates a new ntfy client. Topic can be a bare topic name (expanded to
// https://ntfy.sh/{topic}) or a full URL (https://ntfy.example.com/mytopic).
// Events is a comma-separated list of notice levels to send (e.g. "error,success").
func New(topic, token, events string) *Client {
	url := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		url = "https://ntfy.sh/" + topic
	}
	evMap := make(map[string]bool)
	for _, e := range strings.Split(events, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			evMap[e] = true
		}
	}
	return &Client{url: url, token: token, events: evMap, http: &http.Client{Timeout: 10 * time.Second}}
}

// Notify posts the notice in the background when its level is enabled.
// Loading notices are never pushed. Call Flush before the process exits.
func (c *Client) Notify(level notify.Level, msg string) {
	if level == notify.LevelLoading || !c.events[string(level)] {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.Send(level, msg)
	}()
}

// Flush waits for every post started by Notify. Each post is bounded by the
// request timeout.
func (c *Client) Flush() {
	c.inflight.Wait()
}

func (c *Client) Dismiss() {}

// Send posts one notice synchronously.
func (c *Client) Send(level notify.Level, msg string) error {
	priority, tags := "default", "white_check_mark"
	if level == notify.LevelError {
		priority, tags = "high", "x"
	}
	return c.post("codesync", msg, priority, tags)
}

// SendTest sends a test notification synchronously and returns any error.
func (c *Client) SendTest() error {
	return c.post("codesync test", "Push notifications are working!", "default", "test_tube")
}

func (c *Client) post(title, body, priority, tags string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBufferString(body))
	if err != nil {
		logger.Warn("ntfy: build request", "error", err)
		return err
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("ntfy: post failed", "error", err)
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("ntfy: HTTP %d", resp.StatusCode)
		logger.Warn("ntfy: rejected", "error", err)
		return err
	}
	return nil
}
