package copilot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/codesync/internal/llm"
	"github.com/ehrlich-b/codesync/internal/notify"
)

func TestExtension(t *testing.T) {
	tests := []struct{ name, want string }{
		{"a.py", "py"},
		{"main.test.js", "js"},
		{"Makefile", "Makefile"},
		{"dir/x.go", "go"},
		{"v1.2/Dockerfile", "Dockerfile"},
		{".bashrc", "bashrc"},
		{"notes.", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Extension(tt.name), tt.name)
	}
}

func TestBuildActiveFile(t *testing.T) {
	got, err := Build(PromptContext{
		Prompt:     "fix this bug",
		ActiveFile: &FileRef{ID: "1", Name: "a.py", Content: "print(1"},
		OpenFiles:  []FileRef{{ID: "1", Name: "a.py", Content: "print(1"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Current active file: a.py\n\nFile content:\n```py\nprint(1\n```\n\nUser question: fix this bug", got)
}

func TestBuildDotlessNameTagsFenceWithName(t *testing.T) {
	got, err := Build(PromptContext{
		Prompt:     "what does this build",
		ActiveFile: &FileRef{ID: "1", Name: "Makefile", Content: "all:"},
	})
	require.NoError(t, err)
	require.Equal(t, "Current active file: Makefile\n\nFile content:\n```Makefile\nall:\n```\n\nUser question: what does this build", got)
}

func TestBuildOtherOpenFiles(t *testing.T) {
	active := FileRef{ID: "1", Name: "main.go", Content: "package main"}
	got, err := Build(PromptContext{
		Prompt:     "why",
		ActiveFile: &active,
		OpenFiles: []FileRef{
			active,
			{ID: "2", Name: "main.go", Content: "package other"}, // same name, different file
			{ID: "3", Name: "empty.txt"},
			{ID: "4", Name: "style.css", Content: "a{}"},
		},
	})
	require.NoError(t, err)
	want := "Current active file: main.go\n\nFile content:\n```go\npackage main\n```\n\nUser question: why" +
		"\n\nOther open files:\n" +
		"\nFile: main.go\n```go\npackage other\n```\n" +
		"\nFile: style.css\n```css\na{}\n```\n"
	require.Equal(t, want, got)
	require.NotContains(t, got, "empty.txt")
}

func TestBuildWithoutActiveFile(t *testing.T) {
	got, err := Build(PromptContext{
		Prompt: "hello",
		OpenFiles: []FileRef{
			{ID: "1", Name: "a.js", Content: "x"},
			{ID: "2", Name: "b.js", Content: "y"},
		},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "hello\n\nOther open files:\n"))
	require.Contains(t, got, "File: a.js")
	require.Contains(t, got, "File: b.js")
}

func TestBuildSingleFileOrEmptyContent(t *testing.T) {
	got, err := Build(PromptContext{
		Prompt:     "hello",
		ActiveFile: &FileRef{ID: "1", Name: "a.js"},
		OpenFiles:  []FileRef{{ID: "1", Name: "a.js"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", got)

	got, err = Build(PromptContext{
		Prompt:     "hello",
		ActiveFile: &FileRef{ID: "1", Name: "a.js", Content: "x"},
		OpenFiles:  []FileRef{{ID: "1", Name: "a.js", Content: "x"}, {ID: "2", Name: "b.js"}},
	})
	require.NoError(t, err)
	require.NotContains(t, got, "Other open files")
}

func TestBuildEmptyPrompt(t *testing.T) {
	for _, p := range []string{"", "   ", "\n\t"} {
		_, err := Build(PromptContext{Prompt: p})
		require.ErrorIs(t, err, ErrEmptyPrompt)
	}
}

func TestMessages(t *testing.T) {
	msgs, err := Messages(PromptContext{Prompt: "q"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, llm.RoleSystem, msgs[0].Role)
	require.Equal(t, SystemInstruction, msgs[0].Content)
	require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q"}, msgs[1])
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []*llm.Request
	reply string
	err   error
	gate  chan struct{}
}

func (f *fakeProvider) Complete(ctx context.Context, req *llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.reply, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestGenerateSuccess(t *testing.T) {
	p := &fakeProvider{reply: "use a colon"}
	rec := &notify.Recorder{}
	c := New(p, rec)

	out, err := c.Generate(context.Background(), "fix this bug", Files{
		Active: &FileRef{ID: "1", Name: "a.py", Content: "if x print(x)"},
	})
	require.NoError(t, err)
	require.Equal(t, "use a colon", out)
	require.Equal(t, "use a colon", c.Output())
	require.False(t, c.IsRunning())

	require.Equal(t, 1, p.count())
	req := p.calls[0]
	require.Equal(t, "mistral", req.Model)
	require.True(t, req.Private)
	require.Contains(t, req.Messages[1].Content, "```py\n")

	msg, ok := rec.Last(notify.LevelSuccess)
	require.True(t, ok)
	require.Equal(t, "Response generated successfully", msg)
	msg, _ = rec.Last(notify.LevelLoading)
	require.Equal(t, "Generating code...", msg)
}

func TestGenerateEmptyPromptMakesNoRequest(t *testing.T) {
	p := &fakeProvider{reply: "x"}
	rec := &notify.Recorder{}
	c := New(p, rec)

	_, err := c.Generate(context.Background(), "  ", Files{})
	require.ErrorIs(t, err, ErrEmptyPrompt)
	require.Equal(t, 0, p.count())
	msg, _ := rec.Last(notify.LevelError)
	require.Equal(t, "Please write a prompt", msg)
}

func TestGenerateFallsBackToInput(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	c := New(p, nil)
	c.SetInput("from the box")
	require.Equal(t, "from the box", c.Input())

	_, err := c.Generate(context.Background(), "", Files{})
	require.NoError(t, err)
	require.Equal(t, "from the box", p.calls[0].Messages[1].Content)
}

func TestGenerateFailureReturnsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &notify.Recorder{}
	c := New(llm.NewHTTPProvider(srv.URL, "", time.Second), rec)
	out, err := c.Generate(context.Background(), "hi", Files{})
	require.Equal(t, Apology, out)

	var ie *InferenceRequestError
	require.True(t, errors.As(err, &ie))
	var se *llm.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusInternalServerError, se.Code)

	msg, _ := rec.Last(notify.LevelError)
	require.Equal(t, "Failed to generate the response", msg)
	require.Empty(t, c.Output())
	require.False(t, c.IsRunning())
}

func TestGenerateOverlappingCallsBothResolve(t *testing.T) {
	p := &fakeProvider{reply: "r", gate: make(chan struct{})}
	c := New(p, nil)

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Generate(context.Background(), "q", Files{}); err == nil {
				done.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return p.count() == 2 }, 5*time.Second, 5*time.Millisecond)
	require.True(t, c.IsRunning())
	close(p.gate)
	wg.Wait()
	require.Equal(t, int32(2), done.Load())
	require.False(t, c.IsRunning())
}
