package dish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"foodvision/internal/storage"
	"foodvision/internal/vision"
)

// TrainingImage is one candidate reference photo. Read performs the upload
// validation (type, size) and returns the raw bytes.
type TrainingImage struct {
	Filename string
	Read     func() (*storage.Upload, error)
}

type ProcessedImage struct {
	Filename string `json:"filename"`
	SavedAs  string `json:"saved_as"`
	Size     string `json:"size"`
}

type FileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type TrainResult struct {
	DishID           string           `json:"dish_id"`
	DishName         string           `json:"dish_name"`
	ImagesAdded      int              `json:"images_added"`
	TotalReferences  int              `json:"total_references"`
	Processed        []ProcessedImage `json:"processed"`
	Errors           []FileError      `json:"errors"`
	ReadyForAnalysis bool             `json:"ready_for_analysis"`
}

type Service struct {
	repo      Repository
	images    storage.ImageStore
	extractor *vision.FeatureExtractor
	locks     *keyedMutex
	now       func() time.Time
}

func NewService(repo Repository, images storage.ImageStore, extractor *vision.FeatureExtractor) *Service {
	return &Service{
		repo:      repo,
		images:    images,
		extractor: extractor,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// --------------------------------------------------
// Profiles
// --------------------------------------------------

func (s *Service) Create(ctx context.Context, dishID, dishName string, ingredients []string) (*Profile, error) {
	if err := ValidateID(dishID); err != nil {
		return nil, err
	}
	dishName = strings.TrimSpace(dishName)
	if dishName == "" {
		return nil, fmt.Errorf("%w: dish_name is required", ErrInvalidDish)
	}

	unlock := s.locks.Lock(dishID)
	defer unlock()

	_, err := s.getForUpdate(ctx, dishID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, dishID)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	now := s.now()
	p := &Profile{
		DishID:      dishID,
		DishName:    dishName,
		Ingredients: NormalizeIngredients(ingredients),
		References:  []ReferenceEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("dish created", "dish_id", dishID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, dishID string) (*Profile, error) {
	if err := ValidateID(dishID); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, dishID)
}

// freshGetter is implemented by repositories that sit behind a cache and
// can read the backing store directly.
type freshGetter interface {
	GetFresh(ctx context.Context, dishID string) (*Profile, error)
}

// getForUpdate loads the profile a mutation starts from, bypassing any cache.
func (s *Service) getForUpdate(ctx context.Context, dishID string) (*Profile, error) {
	if fg, ok := s.repo.(freshGetter); ok {
		return fg.GetFresh(ctx, dishID)
	}
	return s.repo.Get(ctx, dishID)
}

func (s *Service) List(ctx context.Context) ([]*Profile, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdateIngredients(ctx context.Context, dishID string, ingredients []string) (*Profile, error) {
	if err := ValidateID(dishID); err != nil {
		return nil, ErrNotFound
	}

	unlock := s.locks.Lock(dishID)
	defer unlock()

	p, err := s.getForUpdate(ctx, dishID)
	if err != nil {
		return nil, err
	}

	p.Ingredients = NormalizeIngredients(ingredients)
	p.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the profile and every stored reference image.
func (s *Service) Delete(ctx context.Context, dishID string) error {
	if err := ValidateID(dishID); err != nil {
		return ErrNotFound
	}

	unlock := s.locks.Lock(dishID)
	defer unlock()

	if err := s.repo.Delete(ctx, dishID); err != nil {
		return err
	}

	if err := s.images.DeletePrefix(ctx, storage.DishPrefix(dishID)); err != nil {
		slog.Warn("failed to delete reference images", "dish_id", dishID, "error", err)
	}

	slog.Info("dish deleted", "dish_id", dishID)
	return nil
}

// --------------------------------------------------
// Training
// --------------------------------------------------

// Train appends every valid image as a new reference. Invalid files are
// reported per file and do not stop the others. The profile is saved only
// if at least one image was added.
func (s *Service) Train(ctx context.Context, dishID string, images []TrainingImage) (*TrainResult, error) {
	if err := ValidateID(dishID); err != nil {
		return nil, ErrNotFound
	}

	unlock := s.locks.Lock(dishID)
	defer unlock()

	p, err := s.getForUpdate(ctx, dishID)
	if err != nil {
		return nil, err
	}

	res := &TrainResult{
		DishID:    p.DishID,
		DishName:  p.DishName,
		Processed: []ProcessedImage{},
		Errors:    []FileError{},
	}

	for _, img := range images {
		entry, processed, err := s.addReference(ctx, dishID, img)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.discardImages(ctx, dishID, res.Processed)
				return nil, ctxErr
			}
			slog.Warn("training image rejected", "dish_id", dishID, "filename", img.Filename, "error", err)
			res.Errors = append(res.Errors, FileError{Filename: img.Filename, Error: err.Error()})
			continue
		}

		p.References = append(p.References, entry)
		res.Processed = append(res.Processed, processed)
	}

	if len(res.Processed) > 0 {
		p.UpdatedAt = s.now()
		if err := s.repo.Save(ctx, p); err != nil {
			s.discardImages(ctx, dishID, res.Processed)
			return nil, err
		}
		slog.Info("dish trained", "dish_id", dishID, "added", len(res.Processed), "total", len(p.References))
	}

	res.ImagesAdded = len(res.Processed)
	res.TotalReferences = len(p.References)
	res.ReadyForAnalysis = p.Ready()

	return res, nil
}

// discardImages removes images stored during a training request that will
// not be referenced by the profile. ctx may already be cancelled.
func (s *Service) discardImages(ctx context.Context, dishID string, stored []ProcessedImage) {
	ctx = context.WithoutCancel(ctx)
	for _, img := range stored {
		if err := s.images.Delete(ctx, img.SavedAs); err != nil {
			slog.Warn("failed to remove orphaned reference image", "dish_id", dishID, "key", img.SavedAs, "error", err)
		}
	}
}

func (s *Service) addReference(ctx context.Context, dishID string, img TrainingImage) (ReferenceEntry, ProcessedImage, error) {
	up, err := img.Read()
	if err != nil {
		return ReferenceEntry{}, ProcessedImage{}, err
	}

	decoded, err := s.extractor.Decode(up.Data)
	if err != nil {
		return ReferenceEntry{}, ProcessedImage{}, err
	}

	features, err := s.extractor.Extract(ctx, decoded)
	if err != nil {
		return ReferenceEntry{}, ProcessedImage{}, err
	}

	key := storage.NewReferenceKey(dishID, up.Ext)
	if err := s.images.Put(ctx, key, up.Data, up.ContentType); err != nil {
		return ReferenceEntry{}, ProcessedImage{}, fmt.Errorf("store image: %w", err)
	}

	b := decoded.Bounds()
	return ReferenceEntry{
			Features:   features,
			SourcePath: key,
			AddedAt:    s.now(),
		}, ProcessedImage{
			Filename: img.Filename,
			SavedAs:  key,
			Size:     fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		}, nil
}

// Reset clears all references and their stored images; the profile itself
// (name, ingredients) is kept.
func (s *Service) Reset(ctx context.Context, dishID string) (*Profile, error) {
	if err := ValidateID(dishID); err != nil {
		return nil, ErrNotFound
	}

	unlock := s.locks.Lock(dishID)
	defer unlock()

	p, err := s.getForUpdate(ctx, dishID)
	if err != nil {
		return nil, err
	}

	p.References = []ReferenceEntry{}
	p.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}

	if err := s.images.DeletePrefix(ctx, storage.DishPrefix(dishID)); err != nil {
		slog.Warn("failed to delete reference images", "dish_id", dishID, "error", err)
	}

	slog.Info("dish references reset", "dish_id", dishID)
	return p, nil
}
