package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/config"
	"github.com/ehrlich-b/codesync/internal/logger"
)

// Set by PersistentPreRunE for every subcommand.
var (
	cfg     *config.Config
	cfgPath string
)

// errReported fails a command whose problem was already shown to the user.
var errReported = errors.New("error already reported")

func main() {
	os.Exit(execute(newRootCmd(), os.Stderr))
}

// execute runs root and returns the process exit code. Errors are printed
// here rather than by cobra so reported ones stay quiet.
func execute(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var logLevel, serverURL string

	root := &cobra.Command{
		Use:           "codesync",
		Short:         "codesync: join collaborative code rooms from the terminal",
		Long:          "Connects to a codesync room server, joins rooms, tracks who is present and asks the copilot about open files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			cfgPath = path

			c, err := config.Load(path)
			if err != nil {
				return err
			}
			if logLevel != "" {
				c.Logging.Level = logLevel
			}
			if serverURL != "" {
				c.Server.URL = serverURL
			}
			cfg = c
			return logger.Init(c.Logging.Level, c.Logging.File)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.codesync/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "room server URL")

	root.AddCommand(
		joinCmd(),
		roomCmd(),
		askCmd(),
		serveCmd(),
		configCmd(),
		notifyCmd(),
		sessionCmd(),
	)
	return root
}
