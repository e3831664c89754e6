package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var muteCmd = &cobra.Command{
	Use:   "mute <session-id-or-name> <true|false>",
	Short: "Connect and toggle a user's client-local mute flag.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mute, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("mumble-cli: %q is not a valid bool: %w", args[1], err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		session, _, err := dialSession(ctx)
		if err != nil {
			return err
		}
		defer session.TransportDisconnect(nil)

		var target uint32
		if id, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			target = uint32(id)
		} else {
			found := session.UserFind(args[0])
			if found < 0 {
				return fmt.Errorf("mumble-cli: unknown user %q", args[0])
			}
			target = uint32(found)
		}

		if !session.UserMute(target, mute) {
			return fmt.Errorf("mumble-cli: unknown session %d", target)
		}

		fmt.Printf("session %d local_mute=%v\n", target, mute)
		return nil
	},
}
