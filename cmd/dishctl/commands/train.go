package commands

import (
	"context"
	"fmt"

	"foodvision/internal/app"

	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train <dish_id> <image>...",
		Short: "Add reference photos to a dish",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				images := trainingImages(args[1:], a.Config.MaxImageBytes())

				res, err := a.Dishes.Train(ctx, args[0], images)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if res.ImagesAdded == 0 {
					return fmt.Errorf("no images were added")
				}
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <dish_id>",
		Short: "Remove all reference photos but keep the dish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Dishes.Reset(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p.Summary())
			})
		},
	}
}
