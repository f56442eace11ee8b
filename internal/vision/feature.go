package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

// normEpsilon guards the L2 division for all-zero vectors.
const normEpsilon = 1e-8

var (
	ErrDecode            = errors.New("could not decode image")
	ErrExtraction        = errors.New("feature extraction failed")
	ErrNoReferences      = errors.New("no reference features to compare against")
	ErrDimensionMismatch = errors.New("feature vector dimensions do not match")
)

// FeatureVector is the per-image signature compared by the similarity engine.
// Both vectors are L2-normalized.
type FeatureVector struct {
	Embedding      []float64 `json:"embedding"`
	ColorHistogram []float64 `json:"color_histogram"`
}

// L2Normalize returns v / (||v|| + eps). The input slice is not modified.
func L2Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// --------------------------------------------------
// Feature extraction (embedding + color descriptor)
// --------------------------------------------------

// FeatureExtractor turns a decoded image into a FeatureVector. The same
// extractor must be used for reference and query images.
type FeatureExtractor struct {
	embedder  Embedder
	colorBins int
	maxPixels int
}

func NewFeatureExtractor(embedder Embedder, colorBins int) *FeatureExtractor {
	if colorBins <= 0 {
		colorBins = DefaultColorBins
	}
	return &FeatureExtractor{embedder: embedder, colorBins: colorBins, maxPixels: DefaultMaxPixels}
}

// SetMaxPixels changes the decode cap. Values <= 0 restore the default.
func (f *FeatureExtractor) SetMaxPixels(n int) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	f.maxPixels = n
}

// Decode decodes an uploaded image under this extractor's pixel cap.
func (f *FeatureExtractor) Decode(data []byte) (*image.NRGBA, error) {
	return DecodeLimit(data, f.maxPixels)
}

// Extract returns the feature vector for img. Any failure is reported as
// ErrExtraction since it means the backbone itself is broken.
func (f *FeatureExtractor) Extract(ctx context.Context, img image.Image) (FeatureVector, error) {
	if img == nil {
		return FeatureVector{}, fmt.Errorf("%w: nil image", ErrExtraction)
	}

	emb, err := f.embedder.Embed(ctx, img)
	if err != nil {
		return FeatureVector{}, fmt.Errorf("%w: embedding: %v", ErrExtraction, err)
	}
	if len(emb) == 0 {
		return FeatureVector{}, fmt.Errorf("%w: empty embedding", ErrExtraction)
	}

	return FeatureVector{
		Embedding:      emb,
		ColorHistogram: ColorHistogram(img, f.colorBins),
	}, nil
}
