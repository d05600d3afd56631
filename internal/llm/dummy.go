package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DummyProvider answers locally without any network; used for offline runs
// and tests.
type DummyProvider struct {
	delay time.Duration
}

func NewDummyProvider(delay time.Duration) *DummyProvider {
	return &DummyProvider{delay: delay}
}

func (d *DummyProvider) Complete(ctx context.Context, req *Request) (string, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return "", fmt.Errorf("no user message")
	}

	question := last
	if i := strings.LastIndex(last, "User question: "); i >= 0 {
		question = last[i+len("User question: "):]
	}
	return fmt.Sprintf("This is a dummy response to: %q", strings.TrimSpace(question)), nil
}

func (d *DummyProvider) Name() string {
	return "dummy"
}
