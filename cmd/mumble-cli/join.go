package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join <channel-id-or-name>",
	Short: "Connect and request a move into the given channel.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		session, _, err := dialSession(ctx)
		if err != nil {
			return err
		}
		defer session.TransportDisconnect(nil)

		var channelID uint32
		if id, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			channelID = uint32(id)
		} else {
			found := session.ChannelFind(args[0])
			if found < 0 {
				return fmt.Errorf("mumble-cli: unknown channel %q", args[0])
			}
			channelID = uint32(found)
		}

		if !session.ChannelJoin(channelID) {
			return fmt.Errorf("mumble-cli: channel %d unknown or join not enqueued", channelID)
		}

		time.Sleep(500 * time.Millisecond)
		fmt.Printf("current channel: %d\n", session.ChannelGetCurrent())
		return nil
	},
}
