package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/copilot"
	"github.com/ehrlich-b/codesync/internal/llm"
	"github.com/ehrlich-b/codesync/internal/notify"
)

// readFiles loads each path as an open editor file. The active file, if
// given, is returned separately and also kept in the open list.
func readFiles(paths []string, active string) (*copilot.FileRef, []copilot.FileRef, error) {
	if active != "" && !contains(paths, active) {
		paths = append([]string{active}, paths...)
	}
	var open []copilot.FileRef
	var act *copilot.FileRef
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", p, err)
		}
		id, err := filepath.Abs(p)
		if err != nil {
			id = p
		}
		f := copilot.FileRef{ID: id, Name: filepath.Base(p), Content: string(data)}
		open = append(open, f)
		if p == active {
			act = &f
		}
	}
	return act, open, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func askCmd() *cobra.Command {
	var activeFlag, providerFlag string

	cmd := &cobra.Command{
		Use:   "ask <question> [files...]",
		Short: "Ask the copilot a question about some files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lc := cfg.LLM()
			if providerFlag != "" {
				lc.Provider = providerFlag
			}
			provider, err := llm.New(lc)
			if err != nil {
				return err
			}

			active, open, err := readFiles(args[1:], activeFlag)
			if err != nil {
				return err
			}

			notifier := newNotifier(cfg)
			defer notify.Flush(notifier)

			cp := copilot.New(provider, notifier)
			cp.Model = cfg.Inference.Model
			cp.Private = cfg.Inference.Private

			reply, err := cp.Generate(cmd.Context(), args[0], copilot.Files{Active: active, Open: open})
			if reply != "" {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(reply, "\n"))
			}
			// The notifier has told the user; the detail stays in the log.
			var reqErr *copilot.InferenceRequestError
			if errors.As(err, &reqErr) || errors.Is(err, copilot.ErrEmptyPrompt) {
				return errReported
			}
			return err
		},
	}
	cmd.Flags().StringVar(&activeFlag, "active", "", "file the question is about")
	cmd.Flags().StringVar(&providerFlag, "provider", "", "override inference.provider (http, openai, dummy)")
	return cmd
}
