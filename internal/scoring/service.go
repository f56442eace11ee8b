package scoring

import (
	"context"

	"foodvision/internal/dish"
)

// ProfileSource loads dish profiles; *dish.Service satisfies it.
type ProfileSource interface {
	Get(ctx context.Context, dishID string) (*dish.Profile, error)
}

type Service struct {
	profiles ProfileSource
	composer *Composer
	limits   BatchLimits
}

func NewService(profiles ProfileSource, composer *Composer, limits BatchLimits) *Service {
	return &Service{profiles: profiles, composer: composer, limits: limits}
}

func (s *Service) load(ctx context.Context, dishID string) (*dish.Profile, error) {
	p, err := s.profiles.Get(ctx, dishID)
	if err != nil {
		return nil, err
	}
	if !p.Ready() {
		return nil, ErrNotReady
	}
	return p, nil
}

func (s *Service) Analyze(ctx context.Context, dishID string, in Input) (*Result, error) {
	p, err := s.load(ctx, dishID)
	if err != nil {
		return nil, err
	}
	return s.composer.AnalyzeOne(ctx, p, in)
}

func (s *Service) AnalyzeBatch(ctx context.Context, dishID string, inputs []Input) (*BatchResult, error) {
	p, err := s.load(ctx, dishID)
	if err != nil {
		return nil, err
	}
	return s.composer.AnalyzeBatch(ctx, p, inputs, s.limits)
}
