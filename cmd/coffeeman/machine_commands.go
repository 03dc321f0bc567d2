package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

func newPourCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pour <tag>",
		Short: "Pour the recipe for a tape tag without inserting the tape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pour(tag)
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("pour not started: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear a fault and return the machine to idle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reset()
				if err != nil {
					return err
				}
				if !resp.Reset {
					return fmt.Errorf("reset rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Machine reset")
				return nil
			})
		},
	}
}

func newPrimeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prime <channel>",
		Short: "Fill one pump line with liquid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := parseChannel(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Prime(channel)
				if err != nil {
					return err
				}
				if !resp.Done {
					return fmt.Errorf("prime rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <channel>",
		Short: "Flush one pump line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := parseChannel(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clean(channel)
				if err != nil {
					return err
				}
				if !resp.Done {
					return fmt.Errorf("clean rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newPumpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pump <channel> <distance-mm>",
		Short: "Run one pump for an explicit travel distance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := parseChannel(args[0])
			if err != nil {
				return err
			}
			distance, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil {
				return fmt.Errorf("invalid distance %q: %w", args[1], err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunPump(channel, distance)
				if err != nil {
					return err
				}
				if !resp.Done {
					return fmt.Errorf("pump run rejected: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func parseChannel(arg string) (int, error) {
	channel, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q: %w", arg, err)
	}
	return channel, nil
}
