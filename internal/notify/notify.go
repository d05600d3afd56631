// Package notify is the side channel for transient user feedback: loading,
// success and error notices. Nothing in it is part of the data contract.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/ehrlich-b/codesync/internal/logger"
)

type Level string

const (
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows transient notices. Dismiss clears any pending loading notice.
type Notifier interface {
	Notify(level Level, msg string)
	Dismiss()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(Level, string) {}
func (Nop) Dismiss()             {}

// Log writes notices to the structured log.
type Log struct{}

func (Log) Notify(level Level, msg string) {
	switch level {
	case LevelError:
		logger.Warn("notice", "level", level, "msg", msg)
	default:
		logger.Info("notice", "level", level, "msg", msg)
	}
}

func (Log) Dismiss() {}

// Console prints notices to a terminal. On a TTY a loading notice stays on its
// own line and is overwritten by whatever comes next.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	pending bool
}

func NewConsole(w io.Writer) *Console {
	c := &Console{w: w}
	if f, ok := w.(*os.File); ok {
		c.tty = term.IsTerminal(int(f.Fd()))
	}
	return c
}

func (c *Console) Notify(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	switch level {
	case LevelLoading:
		if c.tty {
			fmt.Fprintf(c.w, "… %s", msg)
			c.pending = true
			return
		}
		fmt.Fprintf(c.w, "… %s\n", msg)
	case LevelSuccess:
		fmt.Fprintf(c.w, "✓ %s\n", msg)
	case LevelError:
		fmt.Fprintf(c.w, "✗ %s\n", msg)
	}
}

func (c *Console) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Console) clearLocked() {
	if c.pending {
		fmt.Fprint(c.w, "\r\033[K")
		c.pending = false
	}
}

// Flusher is implemented by notifiers that deliver in the background.
type Flusher interface {
	Flush()
}

// Flush waits for n's background deliveries, if it has any.
func Flush(n Notifier) {
	if f, ok := n.(Flusher); ok {
		f.Flush()
	}
}

// Multi fans notices out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, msg string) {
	for _, n := range m {
		n.Notify(level, msg)
	}
}

func (m Multi) Dismiss() {
	for _, n := range m {
		n.Dismiss()
	}
}

func (m Multi) Flush() {
	for _, n := range m {
		Flush(n)
	}
}

// Recorder keeps every notice; used by tests and by callers that want to
// inspect what the user was shown.
type Recorder struct {
	mu      sync.Mutex
	Notices []Notice
}

type Notice struct {
	Level Level
	Msg   string
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	r.Notices = append(r.Notices, Notice{Level: level, Msg: msg})
	r.mu.Unlock()
}

func (r *Recorder) Dismiss() {}

// Last returns the most recent notice at level, if any.
func (r *Recorder) Last(level Level) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Notices) - 1; i >= 0; i-- {
		if r.Notices[i].Level == level {
			return r.Notices[i].Msg, true
		}
	}
	return "", false
}

// Count returns how many notices were recorded at level.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.Notices {
		if x.Level == level {
			n++
		}
	}
	return n
}
