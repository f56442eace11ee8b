package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"foodvision/internal/app"
	"foodvision/internal/config"
	"foodvision/internal/dish"
	"foodvision/internal/scoring"
	"foodvision/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// loadApp builds the same services the API server uses.
func loadApp(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	app.SetupLogger(cfg)

	return app.Build(ctx, cfg)
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dishctl",
		Short: "Manage dish profiles and score food photos",
		Long: `dishctl works directly on the configured profile and image stores,
using the same environment variables as the API server.

Examples:
  dishctl create biryani "Chicken Biryani" --ingredient rice --ingredient chicken
  dishctl train biryani ref1.jpg ref2.jpg
  dishctl analyze biryani plate.jpg`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newCreateCmd(),
		newListCmd(),
		newShowCmd(),
		newIngredientsCmd(),
		newTrainCmd(),
		newResetCmd(),
		newDeleteCmd(),
		newAnalyzeCmd(),
	)

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// withApp runs fn against freshly built services and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readImageFile(path string, maxBytes int64) (*storage.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return storage.ReadImage(filepath.Base(path), data, maxBytes)
}

func trainingImages(paths []string, maxBytes int64) []dish.TrainingImage {
	out := make([]dish.TrainingImage, 0, len(paths))
	for _, p := range paths {
		out = append(out, dish.TrainingImage{
			Filename: filepath.Base(p),
			Read:     func() (*storage.Upload, error) { return readImageFile(p, maxBytes) },
		})
	}
	return out
}

func scoringInputs(paths []string, maxBytes int64) []scoring.Input {
	out := make([]scoring.Input, 0, len(paths))
	for _, p := range paths {
		out = append(out, scoring.Input{
			Filename: filepath.Base(p),
			Read:     func() (*storage.Upload, error) { return readImageFile(p, maxBytes) },
		})
	}
	return out
}
