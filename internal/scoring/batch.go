package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"foodvision/internal/dish"
	"foodvision/internal/storage"
	"foodvision/internal/vision"

	"golang.org/x/sync/errgroup"
)

// Input is one photo to analyze. Read performs upload validation.
type Input struct {
	Filename string
	Read     func() (*storage.Upload, error)
}

type BatchItem struct {
	ImageIndex       int     `json:"image_index"`
	OriginalFilename string  `json:"original_filename"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	Result           *Result `json:"result,omitempty"`
}

type BatchResult struct {
	DishID         string      `json:"dish_id"`
	DishName       string      `json:"dish_name"`
	ImagesAnalyzed int         `json:"images_analyzed"`
	Successful     int         `json:"successful"`
	Failed         int         `json:"failed"`
	AverageScore   float64     `json:"average_score"`
	Results        []BatchItem `json:"results"`
}

type BatchLimits struct {
	MaxSize     int
	Concurrency int
}

// AnalyzeOne reads, decodes and scores a single input.
func (c *Composer) AnalyzeOne(ctx context.Context, p *dish.Profile, in Input) (*Result, error) {
	up, err := in.Read()
	if err != nil {
		return nil, err
	}

	img, err := c.extractor.Decode(up.Data)
	if err != nil {
		return nil, err
	}

	return c.Analyze(ctx, p, img)
}

// AnalyzeBatch scores every input against p with bounded concurrency. A
// failing item is reported in place and does not affect the others; results
// keep the input order.
func (c *Composer) AnalyzeBatch(ctx context.Context, p *dish.Profile, inputs []Input, limits BatchLimits) (*BatchResult, error) {
	if !p.Ready() {
		return nil, ErrNotReady
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if limits.MaxSize > 0 && len(inputs) > limits.MaxSize {
		return nil, fmt.Errorf("%w: %d images (limit %d)", ErrBatchTooLarge, len(inputs), limits.MaxSize)
	}

	items := make([]BatchItem, len(inputs))

	var g errgroup.Group
	if limits.Concurrency > 0 {
		g.SetLimit(limits.Concurrency)
	}

	for i, in := range inputs {
		g.Go(func() error {
			item := BatchItem{ImageIndex: i, OriginalFilename: in.Filename}

			res, err := c.AnalyzeOne(ctx, p, in)
			if err != nil {
				slog.Warn("batch item failed", "dish_id", p.DishID, "index", i, "filename", in.Filename, "error", err)
				item.Error = err.Error()
			} else {
				item.Success = true
				item.Result = res
			}

			items[i] = item
			return nil
		})
	}
	g.Wait()

	out := &BatchResult{
		DishID:         p.DishID,
		DishName:       p.DishName,
		ImagesAnalyzed: len(items),
		Results:        items,
	}

	var sum float64
	for _, it := range items {
		if it.Success {
			out.Successful++
			sum += it.Result.FinalScore
		} else {
			out.Failed++
		}
	}
	if out.Successful > 0 {
		out.AverageScore = vision.Round1(sum / float64(out.Successful))
	}

	return out, nil
}
