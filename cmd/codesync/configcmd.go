package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/codesync/internal/config"
	"github.com/ehrlich-b/codesync/internal/ntfy"
)

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage ~/.codesync/config.yaml",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(cfgPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *cfg
			if shown.Inference.APIKey != "" {
				shown.Inference.APIKey = "********"
			}
			if shown.Notify.NtfyToken != "" {
				shown.Notify.NtfyToken = "********"
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	c.AddCommand(initCmd, showCmd)
	return c
}

func notifyCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "notify",
		Short: "Push notification helpers",
	}
	c.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test push notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Notify.NtfyTopic == "" {
				return fmt.Errorf("notify.ntfy_topic is not set")
			}
			if err := ntfy.New(cfg.Notify.NtfyTopic, cfg.Notify.NtfyToken, cfg.Notify.Events.String()).SendTest(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	})
	return c
}
