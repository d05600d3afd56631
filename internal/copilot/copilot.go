package copilot

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/codesync/internal/llm"
	"github.com/ehrlich-b/codesync/internal/logger"
	"github.com/ehrlich-b/codesync/internal/notify"
)

// Files is the editor state sent along with a question.
type Files struct {
	Active *FileRef
	Open   []FileRef
}

// Copilot sends questions to the inference service. Calls are not cancelled
// by later calls; overlapping calls each resolve on their own.
type Copilot struct {
	Model   string
	Private bool

	provider llm.Provider
	notifier notify.Notifier
	running  atomic.Int32

	mu     sync.Mutex
	input  string
	output string
}

func New(provider llm.Provider, notifier notify.Notifier) *Copilot {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Copilot{
		Model:    llm.DefaultModel,
		Private:  true,
		provider: provider,
		notifier: notifier,
	}
}

// IsRunning reports whether any request is in flight.
func (c *Copilot) IsRunning() bool {
	return c.running.Load() > 0
}

func (c *Copilot) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Copilot) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

// Output is the most recent successful reply.
func (c *Copilot) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// Generate asks question (or the stored input when question is blank) with
// files as context. On inference failure it returns Apology together with an
// *InferenceRequestError.
func (c *Copilot) Generate(ctx context.Context, question string, files Files) (string, error) {
	prompt := question
	if strings.TrimSpace(prompt) == "" {
		prompt = c.Input()
	}
	msgs, err := Messages(PromptContext{Prompt: prompt, ActiveFile: files.Active, OpenFiles: files.Open})
	if err != nil {
		c.notifier.Notify(notify.LevelError, "Please write a prompt")
		return "", err
	}

	c.notifier.Notify(notify.LevelLoading, "Generating code...")
	c.running.Add(1)
	reply, err := c.provider.Complete(ctx, &llm.Request{
		Messages: msgs,
		Model:    c.Model,
		Private:  c.Private,
	})
	c.running.Add(-1)
	c.notifier.Dismiss()

	if err != nil {
		logger.Warn("copilot request failed", "provider", c.provider.Name(), "error", err)
		c.notifier.Notify(notify.LevelError, "Failed to generate the response")
		return Apology, &InferenceRequestError{Err: err}
	}
	if reply == "" {
		return "", nil
	}

	c.mu.Lock()
	c.output = reply
	c.mu.Unlock()
	c.notifier.Notify(notify.LevelSuccess, "Response generated successfully")
	return reply, nil
}
