package scoring

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"sync"
	"testing"

	"foodvision/internal/dish"
	"foodvision/internal/llm"
	"foodvision/internal/storage"
	"foodvision/internal/vision"
)

func patternImage(shift uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x*4) + shift, G: uint8(y * 5), B: uint8(x + 2*y), A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

type fakeJudge struct {
	mu       sync.Mutex
	score    *int
	requests []llm.Request
}

func judgeWithScore(score int) *fakeJudge {
	return &fakeJudge{score: &score}
}

func (f *fakeJudge) Judge(_ context.Context, req llm.Request) llm.Judgment {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.score == nil {
		return llm.Unavailable("No OPENAI_API_KEY set")
	}
	s := *f.score
	return llm.Judgment{
		Score:              &s,
		MissingIngredients: []string{"coriander"},
		IssuesFound:        []string{},
		CorrectElements:    []string{"rice"},
		OverallAssessment:  "Looks right.",
		Confidence:         llm.ConfidenceHigh,
		Source:             "fake_vision",
	}
}

type mapLoader map[string][]byte

func (m mapLoader) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, image.Image) ([]float64, error) {
	return nil, errors.New("backbone exploded")
}

func extractor() *vision.FeatureExtractor {
	return vision.NewFeatureExtractor(vision.NewHaarEmbedder(), vision.DefaultColorBins)
}

// trainedProfile holds one reference built from patternImage(0).
func trainedProfile(t *testing.T) (*dish.Profile, mapLoader) {
	t.Helper()
	ref := patternImage(0)
	features, err := extractor().Extract(context.Background(), ref)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	p := &dish.Profile{
		DishID:      "biryani",
		DishName:    "Chicken Biryani",
		Ingredients: []string{"rice", "chicken"},
		References:  []dish.ReferenceEntry{{Features: features, SourcePath: "biryani/ref.png"}},
	}
	return p, mapLoader{"biryani/ref.png": pngBytes(t, ref)}
}

// --------------------------------------------------
// Labels and weights
// --------------------------------------------------

func TestLabelBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, LabelExcellent},
		{85.0, LabelExcellent},
		{84.9, LabelGood},
		{70.0, LabelGood},
		{69.9, LabelNeedsImprovement},
		{50.0, LabelNeedsImprovement},
		{49.9, LabelPoor},
		{0, LabelPoor},
	}
	for _, tt := range tests {
		if got := Label(tt.score); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}

	bad := DefaultConfig()
	bad.Weights.Judge = 0.3
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for weights summing to 1.05")
	}

	bad = DefaultConfig()
	bad.Fallback = FallbackWeights{Visual: 1.2, Color: -0.2}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

// --------------------------------------------------
// Composer
// --------------------------------------------------

func TestAnalyze_IdenticalImageScoresHundred(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), judgeWithScore(100), loader, DefaultConfig())

	res, err := c.Analyze(context.Background(), p, patternImage(0))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if res.FinalScore != 100 || res.QualityLabel != LabelExcellent {
		t.Fatalf("expected 100 Excellent, got %v %s", res.FinalScore, res.QualityLabel)
	}
	if res.ScoringMethod != MethodFull || res.Breakdown.Weights.Judge != 0.25 {
		t.Fatalf("expected full method, got %+v", res.Breakdown)
	}
	if res.ReferenceCount != 1 || res.AnalysisSource != "fake_vision" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAnalyze_WeightedCombination(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), judgeWithScore(40), loader, DefaultConfig())

	res, err := c.Analyze(context.Background(), p, patternImage(0))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// 100*0.5 + 100*0.25 + 40*0.25
	if res.FinalScore != 85 {
		t.Fatalf("expected 85, got %v", res.FinalScore)
	}
	if res.Breakdown.JudgeScore == nil || *res.Breakdown.JudgeScore != 40 {
		t.Fatalf("expected judge score 40 in breakdown, got %v", res.Breakdown.JudgeScore)
	}
}

func TestAnalyze_FallbackWhenJudgeUnavailable(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), &fakeJudge{}, loader, DefaultConfig())

	res, err := c.Analyze(context.Background(), p, patternImage(70))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if res.ScoringMethod != MethodFallback || res.Breakdown.JudgeScore != nil {
		t.Fatalf("expected fallback method, got %+v", res.Breakdown)
	}
	if res.Breakdown.Weights.Judge != 0 || res.Breakdown.Weights.VisualStructure != 0.65 {
		t.Fatalf("expected fallback weights, got %+v", res.Breakdown.Weights)
	}
	if len(res.MissingIngredients) != 0 || res.Confidence != llm.ConfidenceNone {
		t.Fatalf("expected empty findings, got %+v", res)
	}

	want := vision.Round1(res.Breakdown.VisualStructureScore*0.65 + res.Breakdown.ColorScore*0.35)
	if math.Abs(res.FinalScore-want) > 0.05 {
		t.Fatalf("expected final %v, got %v", want, res.FinalScore)
	}
}

func TestAnalyze_FinalScoreInRange(t *testing.T) {
	p, loader := trainedProfile(t)
	for _, judge := range []*fakeJudge{judgeWithScore(0), judgeWithScore(100), {}} {
		c := NewComposer(extractor(), judge, loader, DefaultConfig())
		for _, shift := range []uint8{0, 33, 128, 200} {
			res, err := c.Analyze(context.Background(), p, patternImage(shift))
			if err != nil {
				t.Fatalf("analyze: %v", err)
			}
			if res.FinalScore < 0 || res.FinalScore > 100 {
				t.Fatalf("score %v out of range", res.FinalScore)
			}
			if res.FinalScore != vision.Round1(res.FinalScore) {
				t.Fatalf("score %v not rounded to one decimal", res.FinalScore)
			}
		}
	}
}

func TestAnalyze_NotReady(t *testing.T) {
	c := NewComposer(extractor(), judgeWithScore(90), mapLoader{}, DefaultConfig())
	_, err := c.Analyze(context.Background(), &dish.Profile{DishID: "empty"}, patternImage(0))
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestAnalyze_ExtractionFailure(t *testing.T) {
	p, loader := trainedProfile(t)
	failing := vision.NewFeatureExtractor(failingEmbedder{}, vision.DefaultColorBins)
	c := NewComposer(failing, judgeWithScore(90), loader, DefaultConfig())

	_, err := c.Analyze(context.Background(), p, patternImage(0))
	if !errors.Is(err, vision.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestAnalyze_MissingReferenceImageIsNotFatal(t *testing.T) {
	p, _ := trainedProfile(t)
	judge := judgeWithScore(80)
	c := NewComposer(extractor(), judge, mapLoader{}, DefaultConfig())

	if _, err := c.Analyze(context.Background(), p, patternImage(0)); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(judge.requests) != 1 || judge.requests[0].Reference != nil {
		t.Fatal("judge should be called without a reference image")
	}
}

func TestAnalyze_PassesReferenceAndDishToJudge(t *testing.T) {
	p, loader := trainedProfile(t)
	judge := judgeWithScore(80)
	c := NewComposer(extractor(), judge, loader, DefaultConfig())

	c.Analyze(context.Background(), p, patternImage(0))

	req := judge.requests[0]
	if req.Reference == nil || req.DishName != "Chicken Biryani" || len(req.Ingredients) != 2 {
		t.Fatalf("unexpected judge request %+v", req)
	}
}

func TestAnalyze_DoesNotMutateProfile(t *testing.T) {
	p, loader := trainedProfile(t)
	before := p.Clone()
	c := NewComposer(extractor(), judgeWithScore(75), loader, DefaultConfig())

	c.Analyze(context.Background(), p, patternImage(50))

	if !reflect.DeepEqual(before, p) {
		t.Fatal("profile was modified by analysis")
	}
}

// --------------------------------------------------
// Batch
// --------------------------------------------------

func inputFrom(name string, data []byte) Input {
	return Input{
		Filename: name,
		Read: func() (*storage.Upload, error) {
			return &storage.Upload{Filename: name, ContentType: "image/png", Ext: ".png", Data: data}, nil
		},
	}
}

func TestAnalyzeBatch_IsolatesCorruptItem(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), judgeWithScore(100), loader, DefaultConfig())

	inputs := []Input{
		inputFrom("a.png", pngBytes(t, patternImage(0))),
		inputFrom("b.png", []byte("corrupt bytes")),
		inputFrom("c.png", pngBytes(t, patternImage(0))),
	}

	res, err := c.AnalyzeBatch(context.Background(), p, inputs, BatchLimits{MaxSize: 20, Concurrency: 2})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if res.ImagesAnalyzed != 3 || res.Successful != 2 || res.Failed != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	for i, item := range res.Results {
		if item.ImageIndex != i {
			t.Fatalf("result %d has index %d", i, item.ImageIndex)
		}
	}
	if res.Results[1].Success || res.Results[1].Error == "" || res.Results[1].OriginalFilename != "b.png" {
		t.Fatalf("second item should fail with an error, got %+v", res.Results[1])
	}
	if !res.Results[0].Success || !res.Results[2].Success {
		t.Fatal("first and third items should succeed")
	}
	if res.AverageScore != 100 {
		t.Fatalf("expected average over successes only (100), got %v", res.AverageScore)
	}
}

func TestAnalyzeBatch_Limits(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), judgeWithScore(100), loader, DefaultConfig())
	data := pngBytes(t, patternImage(0))

	inputs := []Input{inputFrom("a.png", data), inputFrom("b.png", data), inputFrom("c.png", data)}
	_, err := c.AnalyzeBatch(context.Background(), p, inputs, BatchLimits{MaxSize: 2, Concurrency: 1})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}

	_, err = c.AnalyzeBatch(context.Background(), p, nil, BatchLimits{MaxSize: 2})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestAnalyzeBatch_AllFailedAverageZero(t *testing.T) {
	p, loader := trainedProfile(t)
	c := NewComposer(extractor(), judgeWithScore(100), loader, DefaultConfig())

	res, err := c.AnalyzeBatch(context.Background(), p, []Input{inputFrom("x.png", []byte("nope"))}, BatchLimits{})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if res.Successful != 0 || res.AverageScore != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}
