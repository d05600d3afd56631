package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/relay"
)

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local in-memory room server for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := addrFlag
			if addr == "" {
				addr = cfg.Server.Listen
			}
			httpSrv := &http.Server{
				Addr:    addr,
				Handler: relay.NewServer(),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("codesync serve listening on %s\n", addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				fmt.Println("shutting down...")
				return httpSrv.Close()
			case err := <-errCh:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default server.listen)")
	return cmd
}
