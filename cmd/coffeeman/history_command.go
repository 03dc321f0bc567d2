package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pours and maintenance runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Journal is empty")
					return nil
				}

				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{Title: "Started"},
						{Title: "Operation"},
						{Title: "Recipe"},
						{Title: "Tag"},
						{Title: "Status"},
						{Title: "Progress", Numeric: true},
					},
					buildHistoryRows(resp.Entries),
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}

func buildHistoryRows(entries []ipc.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		status := entry.Status
		if entry.Fault != "" {
			status = fmt.Sprintf("%s (%s)", entry.Status, entry.Fault)
		}
		progress := ""
		if entry.IngredientsTotal > 0 {
			progress = fmt.Sprintf("%d/%d", entry.IngredientsDone, entry.IngredientsTotal)
		}
		rows = append(rows, []string{
			formatHistoryTime(entry.StartedAt),
			entry.Operation,
			entry.Recipe,
			entry.Tag,
			status,
			progress,
		})
	}
	return rows
}

func formatHistoryTime(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}
