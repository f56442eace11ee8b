package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"foodvision/internal/app"
	"foodvision/internal/dish"

	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var ingredients []string

	cmd := &cobra.Command{
		Use:   "create <dish_id> <dish_name>",
		Short: "Register a new dish",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Dishes.Create(ctx, args[0], args[1], ingredients)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p.Summary())
			})
		},
	}

	cmd.Flags().StringSliceVarP(&ingredients, "ingredient", "i", nil, "Expected ingredient (repeatable)")
	return cmd
}

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered dishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				profiles, err := a.Dishes.List(ctx)
				if err != nil {
					return err
				}

				summaries := make([]dish.Summary, 0, len(profiles))
				for _, p := range profiles {
					summaries = append(summaries, p.Summary())
				}

				if asJSON {
					return printJSON(cmd.OutOrStdout(), summaries)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DISH ID\tNAME\tREFERENCES\tREADY")
				for _, s := range summaries {
					fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", s.DishID, s.DishName, s.ReferenceCount, s.ReadyForAnalysis)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dish_id>",
		Short: "Show one dish profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Dishes.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p.Summary())
			})
		},
	}
}

func newIngredientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingredients <dish_id> <ingredient>...",
		Short: "Replace the expected ingredient list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Dishes.UpdateIngredients(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p.Summary())
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dish_id>",
		Short: "Delete a dish and all of its reference images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Dishes.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
