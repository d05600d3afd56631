package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/codesync/internal/notify"
	"github.com/ehrlich-b/codesync/internal/profile"
	"github.com/ehrlich-b/codesync/internal/roomid"
	"github.com/ehrlich-b/codesync/internal/session"
	"github.com/ehrlich-b/codesync/internal/ws"
)

func joinCmd() *cobra.Command {
	var roomFlag, userFlag string
	var newRoom bool

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room and stay connected until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := newGateway(cfg)
			if err != nil {
				return err
			}
			guard, closeGuard, err := newRedirectGuard(cfg)
			if err != nil {
				return err
			}
			defer closeGuard()

			notifier := newNotifier(cfg)
			defer notify.Flush(notifier)

			out := cmd.OutOrStdout()
			done := make(chan error, 1)
			sess := session.New(session.Options{
				Gateway:  gw,
				Profile:  profile.NewStore(profile.Profile{Username: userFlag, RoomID: roomFlag}),
				Redirect: guard,
				Notifier: notifier,
				Navigator: session.NavigatorFunc(func(r session.Route) {
					fmt.Fprintf(out, "→ %s\n", r.Path)
				}),
				OnStatus: func(prev, next session.Status) {
					if next == session.ConnectionFailed {
						select {
						case done <- fmt.Errorf("could not reach %s", gw.URL):
						default:
						}
					}
				},
			})
			defer sess.Close()
			defer gw.Disconnect()

			if newRoom {
				id, err := sess.GenerateRoomID()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "room id: %s\n", id)
			}

			presence := func(ws.Event) {
				var names []string
				for _, u := range sess.Users() {
					names = append(names, u.Username)
				}
				if len(names) > 0 {
					fmt.Fprintf(out, "in room: %s\n", strings.Join(names, ", "))
				}
			}
			gw.On(string(ws.MsgUserJoined), presence)
			gw.On(string(ws.MsgUserDisconnected), presence)

			sess.SubmitJoin()
			if sess.Status() != session.AttemptingJoin {
				p := sess.Profile().Get()
				return roomid.Validate(p.Username, p.RoomID)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "leaving room")
				return nil
			case err := <-done:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&roomFlag, "room", "", "room id to join")
	cmd.Flags().StringVar(&userFlag, "user", "", "username shown to others")
	cmd.Flags().BoolVar(&newRoom, "new", false, "create a new room id instead of --room")
	return cmd
}
