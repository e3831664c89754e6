package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sayCmd = &cobra.Command{
	Use:   "say <message>",
	Short: "Connect and send a text message to the current channel.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		session, _, err := dialSession(ctx)
		if err != nil {
			return err
		}
		defer session.TransportDisconnect(nil)

		channelID := session.ChannelGetCurrent()
		if !session.TextSend(args[0], []uint32{channelID}) {
			return fmt.Errorf("mumble-cli: failed to enqueue text message")
		}

		time.Sleep(500 * time.Millisecond)
		fmt.Println("sent")
		return nil
	},
}
