package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if !resp.Sent {
					if resp.Message != "" {
						return fmt.Errorf("notification not sent: %s", resp.Message)
					}
					return fmt.Errorf("notification not sent")
				}
				message := resp.Message
				if message == "" {
					message = "Test notification sent"
				}
				fmt.Fprintln(cmd.OutOrStdout(), message)
				return nil
			})
		},
	}
}
