package scoring

import (
	"errors"
	"fmt"
	"math"

	"foodvision/internal/vision"
)

var (
	ErrNotReady      = errors.New("dish has no reference images")
	ErrBatchTooLarge = errors.New("too many images in batch")
	ErrEmptyBatch    = errors.New("no images in batch")
)

const (
	LabelExcellent        = "Excellent"
	LabelGood             = "Good"
	LabelNeedsImprovement = "Needs Improvement"
	LabelPoor             = "Poor"
)

const (
	MethodFull     = "visual_embedding + color_histogram + ai_vision"
	MethodFallback = "visual_embedding + color_histogram (ai judgment unavailable)"
)

const weightTolerance = 1e-6

// Weights applies when the judgment is available.
type Weights struct {
	Visual float64
	Color  float64
	Judge  float64
}

// FallbackWeights applies when the judgment is unavailable.
type FallbackWeights struct {
	Visual float64
	Color  float64
}

type Config struct {
	Weights    Weights
	Fallback   FallbackWeights
	Similarity vision.SimilarityWeights
}

func DefaultConfig() Config {
	return Config{
		Weights:    Weights{Visual: 0.5, Color: 0.25, Judge: 0.25},
		Fallback:   FallbackWeights{Visual: 0.65, Color: 0.35},
		Similarity: vision.DefaultSimilarityWeights(),
	}
}

// Validate checks every weight group sums to 1.
func (c Config) Validate() error {
	groups := []struct {
		name string
		sum  float64
		ws   []float64
	}{
		{"score weights", c.Weights.Visual + c.Weights.Color + c.Weights.Judge, []float64{c.Weights.Visual, c.Weights.Color, c.Weights.Judge}},
		{"fallback weights", c.Fallback.Visual + c.Fallback.Color, []float64{c.Fallback.Visual, c.Fallback.Color}},
		{"similarity weights", c.Similarity.Embedding + c.Similarity.Color, []float64{c.Similarity.Embedding, c.Similarity.Color}},
	}

	for _, g := range groups {
		for _, w := range g.ws {
			if w < 0 {
				return fmt.Errorf("%s: negative weight %v", g.name, w)
			}
		}
		if math.Abs(g.sum-1) > weightTolerance {
			return fmt.Errorf("%s must sum to 1.0, got %v", g.name, g.sum)
		}
	}
	return nil
}

// Label maps a final score onto the quality tiers.
func Label(score float64) string {
	switch {
	case score >= 85:
		return LabelExcellent
	case score >= 70:
		return LabelGood
	case score >= 50:
		return LabelNeedsImprovement
	default:
		return LabelPoor
	}
}

type WeightsUsed struct {
	VisualStructure float64 `json:"visual_structure"`
	Color           float64 `json:"color"`
	Judge           float64 `json:"claude_ai"`
}

type Breakdown struct {
	FinalScore           float64     `json:"final_score"`
	VisualStructureScore float64     `json:"visual_structure_score"`
	ColorScore           float64     `json:"color_score"`
	CombinedVisualScore  float64     `json:"combined_visual_score"`
	JudgeScore           *int        `json:"claude_ai_score"`
	BestReferenceIndex   int         `json:"best_reference_index"`
	ScoringMethod        string      `json:"scoring_method"`
	Weights              WeightsUsed `json:"weights"`
}

// Result is the outcome of one analysis. It is never persisted.
type Result struct {
	Success            bool      `json:"success"`
	DishID             string    `json:"dish_id"`
	DishName           string    `json:"dish_name"`
	FinalScore         float64   `json:"match_percentage"`
	QualityLabel       string    `json:"quality_label"`
	MissingIngredients []string  `json:"missing_ingredients"`
	IssuesFound        []string  `json:"issues_found"`
	CorrectElements    []string  `json:"correct_elements"`
	OverallAssessment  string    `json:"overall_assessment"`
	Breakdown          Breakdown `json:"score_breakdown"`
	ScoringMethod      string    `json:"scoring_method"`
	ReferenceCount     int       `json:"reference_images_used"`
	Confidence         string    `json:"claude_confidence"`
	AnalysisSource     string    `json:"analysis_source"`
}
