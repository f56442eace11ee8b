package llm

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"foodvision/internal/vision"

	"github.com/sethvargo/go-retry"
)

// ImagePart is one labelled JPEG sent to the vision-language service.
type ImagePart struct {
	Label string
	JPEG  []byte
}

// Provider is a vision-language backend: ordered (label, image) pairs plus a
// text prompt in, raw model text out.
type Provider interface {
	Source() string
	Complete(ctx context.Context, images []ImagePart, prompt string) (string, error)
}

// Request is everything the judge needs for one photo.
type Request struct {
	Query       image.Image
	Reference   image.Image // optional
	DishName    string
	Ingredients []string
}

// Judge never fails: any problem comes back as an unavailable Judgment.
type Judge interface {
	Judge(ctx context.Context, req Request) Judgment
}

type JudgeConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// --------------------------------------------------
// Disabled judge (no credentials configured)
// --------------------------------------------------

type DisabledJudge struct {
	Reason string
}

func (d DisabledJudge) Judge(context.Context, Request) Judgment {
	return Unavailable(d.Reason)
}

// --------------------------------------------------
// Vision judge
// --------------------------------------------------

type VisionJudge struct {
	provider Provider
	cfg      JudgeConfig
}

func NewVisionJudge(provider Provider, cfg JudgeConfig) *VisionJudge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &VisionJudge{provider: provider, cfg: cfg}
}

func (j *VisionJudge) Judge(ctx context.Context, req Request) Judgment {
	if req.Query == nil {
		return Unavailable("no image to evaluate")
	}

	parts, err := buildImageParts(req)
	if err != nil {
		return Unavailable(fmt.Sprintf("could not encode image: %v", err))
	}
	prompt := BuildJudgePrompt(req.DishName, req.Ingredients, req.Reference != nil)

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	// raw errors are logged only, never returned to callers
	raw, err := j.complete(ctx, parts, prompt)
	if err != nil {
		slog.Warn("judgment service call failed", "source", j.provider.Source(), "dish", req.DishName, "error", err)
		return Unavailable(j.provider.Source() + " error")
	}

	judgment, err := ParseJudgment(raw)
	if err != nil {
		slog.Warn("judgment response unusable", "source", j.provider.Source(), "dish", req.DishName, "error", err)
		if errors.Is(err, ErrMissingScore) {
			return Unavailable(ErrMissingScore.Error())
		}
		return Unavailable(ErrNonJSON.Error())
	}

	judgment.Source = j.provider.Source()
	return judgment
}

func (j *VisionJudge) complete(ctx context.Context, parts []ImagePart, prompt string) (string, error) {
	backoff := retry.WithMaxRetries(uint64(j.cfg.MaxRetries), retry.NewExponential(j.cfg.RetryDelay))

	var raw string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := j.provider.Complete(ctx, parts, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		raw = out
		return nil
	})

	return raw, err
}

func buildImageParts(req Request) ([]ImagePart, error) {
	var parts []ImagePart

	if req.Reference != nil {
		ref, err := vision.EncodeForJudge(req.Reference)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ImagePart{Label: referenceLabel, JPEG: ref})
	}

	query, err := vision.EncodeForJudge(req.Query)
	if err != nil {
		return nil, err
	}
	parts = append(parts, ImagePart{Label: queryLabel, JPEG: query})

	return parts, nil
}
