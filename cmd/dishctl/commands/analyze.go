package commands

import (
	"context"

	"foodvision/internal/app"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <dish_id> <image>...",
		Short: "Score photos against a trained dish",
		Long: `Score one or more photos against a trained dish and print the result
as JSON. More than one photo uses batch analysis.

Examples:
  dishctl analyze biryani plate.jpg
  dishctl analyze biryani lunch1.jpg lunch2.jpg lunch3.jpg`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				inputs := scoringInputs(args[1:], a.Config.MaxImageBytes())

				if len(inputs) == 1 {
					res, err := a.Scoring.Analyze(ctx, args[0], inputs[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}

				res, err := a.Scoring.AnalyzeBatch(ctx, args[0], inputs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
