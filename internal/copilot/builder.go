// Package copilot turns a user question plus the editor's open documents into
// a request for the inference service.
package copilot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ehrlich-b/codesync/internal/llm"
)

const SystemInstruction = "You are a helpful AI assistant for Code Sync, a real-time collaborative code editor. " +
	"You have access to the current files in the editor. " +
	"When analyzing code, look for errors, bugs, typos, syntax issues, logical problems, and potential improvements. " +
	"Provide clear, actionable suggestions to fix any issues you find. " +
	"If the user asks about errors, carefully examine the code and provide specific fixes. " +
	"Format code blocks using Markdown with appropriate language syntax (e.g., ```js for JavaScript, ```py for Python). " +
	"Be conversational, helpful, and precise in your analysis."

// Apology is handed to callers in place of a reply when inference fails.
const Apology = "Sorry, I encountered an error while processing your request. Please try again."

// ErrEmptyPrompt is returned when the question is empty after trimming. No
// request is made.
var ErrEmptyPrompt = errors.New("empty prompt")

// InferenceRequestError wraps a transport failure or non-2xx answer from the
// inference service.
type InferenceRequestError struct {
	Err error
}

func (e *InferenceRequestError) Error() string {
	return fmt.Sprintf("inference request failed: %v", e.Err)
}

func (e *InferenceRequestError) Unwrap() error { return e.Err }

// FileRef is one document open in the editor. Files are told apart by ID; two
// files may share a name.
type FileRef struct {
	ID      string
	Name    string
	Content string
}

// PromptContext is everything the builder needs for one question.
type PromptContext struct {
	Prompt     string
	ActiveFile *FileRef
	OpenFiles  []FileRef
}

// Extension returns the text after the last dot of the base name, used as
// the code fence language tag. A name without a dot is its own tag
// ("Makefile"); a trailing dot gives none.
func Extension(name string) string {
	base := filepath.Base(name)
	return base[strings.LastIndex(base, ".")+1:]
}

func writeFence(b *strings.Builder, name, content string) {
	fmt.Fprintf(b, "```%s\n%s\n```", Extension(name), content)
}

// Build renders the user message for pc.
func Build(pc PromptContext) (string, error) {
	if strings.TrimSpace(pc.Prompt) == "" {
		return "", ErrEmptyPrompt
	}

	var b strings.Builder
	active := pc.ActiveFile
	if active != nil && active.Content != "" {
		fmt.Fprintf(&b, "Current active file: %s\n\nFile content:\n", active.Name)
		writeFence(&b, active.Name, active.Content)
		fmt.Fprintf(&b, "\n\nUser question: %s", pc.Prompt)
	} else {
		b.WriteString(pc.Prompt)
	}

	if len(pc.OpenFiles) > 1 {
		var others []FileRef
		for _, f := range pc.OpenFiles {
			if active != nil && f.ID == active.ID {
				continue
			}
			if f.Content != "" {
				others = append(others, f)
			}
		}
		if len(others) > 0 {
			b.WriteString("\n\nOther open files:\n")
			for _, f := range others {
				fmt.Fprintf(&b, "\nFile: %s\n", f.Name)
				writeFence(&b, f.Name, f.Content)
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

// Messages returns the system instruction followed by the built user message.
func Messages(pc PromptContext) ([]llm.Message, error) {
	user, err := Build(pc)
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemInstruction},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
