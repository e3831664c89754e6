package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect and stay attached, printing events until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithInterrupt()
		defer cancel()

		session, _, err := dialSession(ctx)
		if err != nil {
			return err
		}

		<-ctx.Done()
		session.TransportDisconnect(nil)
		fmt.Println("bye")
		return nil
	},
}
