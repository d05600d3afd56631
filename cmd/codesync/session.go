package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/store"
)

func sessionCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "session",
		Short: "Local session state",
	}
	c.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the redirect flag and other state kept for the configured scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if cfg.Redirect.Store != "sqlite" {
				fmt.Fprintln(out, "redirect store is in memory; nothing to reset")
				return nil
			}
			db, err := store.Open(expandHome(cfg.Redirect.Path))
			if err != nil {
				return fmt.Errorf("open redirect store: %w", err)
			}
			defer db.Close()
			if err := db.KV(cfg.Redirect.Scope).Clear(); err != nil {
				return err
			}
			fmt.Fprintf(out, "cleared session state for scope %q\n", cfg.Redirect.Scope)
			return nil
		},
	})
	return c
}
