package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

func newRecipesCommand(ctx *commandContext) *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List loaded recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if reload {
					resp, err := client.ReloadRecipes()
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "Reloaded %d recipes\n", resp.Count)
				}

				resp, err := client.Recipes()
				if err != nil {
					return err
				}
				if len(resp.Recipes) == 0 {
					fmt.Fprintln(stdout, "No recipes loaded")
					return nil
				}

				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{Title: "Recipe"},
						{Title: "Tag"},
						{Title: "Ingredients"},
						{Title: "Total", Numeric: true},
					},
					buildRecipeRows(resp.Recipes),
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "Rescan the recipe directory before listing")
	return cmd
}

func buildRecipeRows(summaries []ipc.RecipeSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, recipe := range summaries {
		ingredients := make([]string, 0, len(recipe.Ingredients))
		for _, ing := range recipe.Ingredients {
			name := ing.Name
			if name == "" {
				name = fmt.Sprintf("pump %d", ing.Pump)
			}
			ingredients = append(ingredients, fmt.Sprintf("%s %.1foz", name, ing.AmountOz))
		}
		rows = append(rows, []string{
			recipe.Name,
			recipe.Tag,
			strings.Join(ingredients, ", "),
			fmt.Sprintf("%.1foz", recipe.TotalOunces),
		})
	}
	return rows
}
