package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/roomid"
)

func roomCmd() *cobra.Command {
	room := &cobra.Command{
		Use:   "room",
		Short: "Room id helpers",
	}
	room.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Print a fresh room id",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), roomid.Generate())
			return nil
		},
	})
	room.AddCommand(&cobra.Command{
		Use:   "check <username> <room-id>",
		Short: "Validate a username and room id the way the join form does",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := roomid.Validate(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	})
	return room
}
