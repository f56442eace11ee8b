package vision

import (
	"fmt"
	"math"
)

// SimilarityWeights splits the visual match between the learned embedding
// and the color histogram. The two must sum to 1.0.
type SimilarityWeights struct {
	Embedding float64
	Color     float64
}

func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{Embedding: 0.65, Color: 0.35}
}

// Match is the best reference found for a query.
type Match struct {
	Index                int     `json:"reference_index"`
	EmbeddingSimilarity  float64 `json:"-"`
	ColorSimilarity      float64 `json:"-"`
	Combined             float64 `json:"-"`
	VisualStructureScore float64 `json:"visual_structure_score"`
	ColorScore           float64 `json:"color_score"`
	CombinedVisualScore  float64 `json:"combined_visual_score"`
}

// CosineSimilarity is the dot product of two unit vectors clamped to [0,1].
// Negative similarity is treated as no match at all.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}

	return math.Min(math.Max(dot, 0), 1), nil
}

// CompareToReferences scores query against every reference and returns the
// one with the highest combined score. On exact ties the earliest reference
// wins, so callers must keep references in a stable order.
func CompareToReferences(
	query FeatureVector,
	references []FeatureVector,
	w SimilarityWeights,
) (Match, error) {

	if len(references) == 0 {
		return Match{}, ErrNoReferences
	}

	best := Match{Index: -1}

	for i, ref := range references {
		embSim, err := CosineSimilarity(query.Embedding, ref.Embedding)
		if err != nil {
			return Match{}, fmt.Errorf("reference %d embedding: %w", i, err)
		}
		colorSim, err := CosineSimilarity(query.ColorHistogram, ref.ColorHistogram)
		if err != nil {
			return Match{}, fmt.Errorf("reference %d color histogram: %w", i, err)
		}

		combined := embSim*w.Embedding + colorSim*w.Color

		// strict > keeps the first of equal scores
		if best.Index == -1 || combined > best.Combined {
			best = Match{
				Index:               i,
				EmbeddingSimilarity: embSim,
				ColorSimilarity:     colorSim,
				Combined:            combined,
			}
		}
	}

	best.VisualStructureScore = Round1(best.EmbeddingSimilarity * 100)
	best.ColorScore = Round1(best.ColorSimilarity * 100)
	best.CombinedVisualScore = Round1(best.Combined * 100)

	return best, nil
}
