package scoring

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"foodvision/internal/dish"
	"foodvision/internal/llm"
	"foodvision/internal/vision"

	"golang.org/x/sync/errgroup"
)

// ImageLoader fetches stored reference images by key.
type ImageLoader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Composer turns a query photo plus a trained profile into a Result.
type Composer struct {
	extractor *vision.FeatureExtractor
	judge     llm.Judge
	images    ImageLoader
	cfg       Config
}

func NewComposer(extractor *vision.FeatureExtractor, judge llm.Judge, images ImageLoader, cfg Config) *Composer {
	return &Composer{extractor: extractor, judge: judge, images: images, cfg: cfg}
}

// Analyze scores query against p. The visual path and the judgment call run
// concurrently; a failed judgment only switches to the fallback weights.
// p is read, never modified.
func (c *Composer) Analyze(ctx context.Context, p *dish.Profile, query image.Image) (*Result, error) {
	if !p.Ready() {
		return nil, ErrNotReady
	}

	var (
		match    vision.Match
		judgment llm.Judgment
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		features, err := c.extractor.Extract(gctx, query)
		if err != nil {
			return err
		}
		m, err := vision.CompareToReferences(features, p.FeatureVectors(), c.cfg.Similarity)
		if err != nil {
			return fmt.Errorf("compare to references: %w", err)
		}
		match = m
		return nil
	})

	g.Go(func() error {
		judgment = c.judge.Judge(gctx, llm.Request{
			Query:       query,
			Reference:   c.referenceImage(gctx, p),
			DishName:    p.DishName,
			Ingredients: p.Ingredients,
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return c.compose(p, match, judgment), nil
}

// referenceImage loads the first reference photo for the judge. A missing
// or unreadable image is not fatal.
func (c *Composer) referenceImage(ctx context.Context, p *dish.Profile) image.Image {
	key := p.References[0].SourcePath
	if key == "" || c.images == nil {
		return nil
	}

	data, err := c.images.Get(ctx, key)
	if err != nil {
		slog.Warn("reference image unavailable, judging without it", "dish_id", p.DishID, "key", key, "error", err)
		return nil
	}

	img, err := c.extractor.Decode(data)
	if err != nil {
		slog.Warn("reference image unreadable, judging without it", "dish_id", p.DishID, "key", key, "error", err)
		return nil
	}
	return img
}

func (c *Composer) compose(p *dish.Profile, m vision.Match, j llm.Judgment) *Result {
	var (
		final   float64
		method  string
		weights WeightsUsed
	)

	if j.Available() {
		w := c.cfg.Weights
		final = m.VisualStructureScore*w.Visual + m.ColorScore*w.Color + float64(*j.Score)*w.Judge
		method = MethodFull
		weights = WeightsUsed{VisualStructure: w.Visual, Color: w.Color, Judge: w.Judge}
	} else {
		w := c.cfg.Fallback
		final = m.VisualStructureScore*w.Visual + m.ColorScore*w.Color
		method = MethodFallback
		weights = WeightsUsed{VisualStructure: w.Visual, Color: w.Color}
	}

	final = vision.Round1(math.Min(math.Max(final, 0), 100))

	return &Result{
		Success:            true,
		DishID:             p.DishID,
		DishName:           p.DishName,
		FinalScore:         final,
		QualityLabel:       Label(final),
		MissingIngredients: j.MissingIngredients,
		IssuesFound:        j.IssuesFound,
		CorrectElements:    j.CorrectElements,
		OverallAssessment:  j.OverallAssessment,
		Breakdown: Breakdown{
			FinalScore:           final,
			VisualStructureScore: m.VisualStructureScore,
			ColorScore:           m.ColorScore,
			CombinedVisualScore:  m.CombinedVisualScore,
			JudgeScore:           j.Score,
			BestReferenceIndex:   m.Index,
			ScoringMethod:        method,
			Weights:              weights,
		},
		ScoringMethod:  method,
		ReferenceCount: len(p.References),
		Confidence:     j.Confidence,
		AnalysisSource: j.Source,
	}
}
