package llm

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	return img
}

const validResponse = `{
  "claude_score": 82,
  "missing_ingredients": ["coriander"],
  "issues_found": [],
  "correct_elements": ["rice", "raita"],
  "overall_assessment": "Close to reference.",
  "confidence": "HIGH"
}`

// --------------------------------------------------
// Parser
// --------------------------------------------------

func TestParseJudgment_Valid(t *testing.T) {
	j, err := ParseJudgment(validResponse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !j.Available() || *j.Score != 82 {
		t.Fatalf("expected score 82, got %+v", j)
	}
	if j.Confidence != ConfidenceHigh {
		t.Errorf("expected confidence high, got %q", j.Confidence)
	}
	if len(j.MissingIngredients) != 1 || j.MissingIngredients[0] != "coriander" {
		t.Errorf("unexpected missing ingredients %v", j.MissingIngredients)
	}
	if j.IssuesFound == nil {
		t.Error("issues_found should be an empty list, not nil")
	}
}

func TestParseJudgment_CodeFence(t *testing.T) {
	j, err := ParseJudgment("```json\n" + validResponse + "\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *j.Score != 82 {
		t.Fatalf("expected score 82, got %d", *j.Score)
	}
}

func TestParseJudgment_ClampsAndDefaults(t *testing.T) {
	j, err := ParseJudgment(`{"claude_score": 140.4, "confidence": "certain"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *j.Score != 100 {
		t.Errorf("expected clamp to 100, got %d", *j.Score)
	}
	if j.Confidence != ConfidenceMedium {
		t.Errorf("expected default confidence medium, got %q", j.Confidence)
	}
	if j.CorrectElements == nil || j.MissingIngredients == nil {
		t.Error("lists must default to empty")
	}
}

func TestParseJudgment_ZeroIsAValidScore(t *testing.T) {
	j, err := ParseJudgment(`{"claude_score": 0}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !j.Available() || *j.Score != 0 {
		t.Fatalf("expected available score 0, got %+v", j)
	}
}

func TestParseJudgment_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"prose", "The dish looks great!", ErrNonJSON},
		{"array", `[1,2,3]`, ErrNonJSON},
		{"missing score", `{"confidence": "high"}`, ErrMissingScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJudgment(tt.raw); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildJudgePrompt(t *testing.T) {
	p := BuildJudgePrompt("Biryani", []string{"rice", "chicken"}, true)
	if !strings.Contains(p, "Biryani") || !strings.Contains(p, "rice, chicken") {
		t.Fatalf("prompt missing dish details:\n%s", p)
	}
	if !strings.Contains(p, "REFERENCE IMAGE") {
		t.Error("reference-mode prompt should mention the reference image")
	}

	p = BuildJudgePrompt("Biryani", nil, false)
	if !strings.Contains(p, "not specified") {
		t.Error("empty ingredient list should render as not specified")
	}
}

// --------------------------------------------------
// Vision judge
// --------------------------------------------------

type fakeProvider struct {
	calls    atomic.Int32
	failures int32
	reply    string
	block    bool
	images   []ImagePart
}

func (f *fakeProvider) Source() string { return "fake_vision" }

func (f *fakeProvider) Complete(ctx context.Context, images []ImagePart, prompt string) (string, error) {
	n := f.calls.Add(1)
	f.images = images
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= f.failures {
		return "", errors.New("upstream 503")
	}
	return f.reply, nil
}

func fastConfig() JudgeConfig {
	return JudgeConfig{Timeout: time.Second, MaxRetries: 1, RetryDelay: time.Millisecond}
}

func TestVisionJudge_Success(t *testing.T) {
	p := &fakeProvider{reply: validResponse}
	j := NewVisionJudge(p, fastConfig()).Judge(context.Background(), Request{
		Query:       testImage(),
		Reference:   testImage(),
		DishName:    "Biryani",
		Ingredients: []string{"rice"},
	})

	if !j.Available() || *j.Score != 82 {
		t.Fatalf("expected score 82, got %+v", j)
	}
	if j.Source != "fake_vision" {
		t.Errorf("expected source fake_vision, got %q", j.Source)
	}
	if len(p.images) != 2 || p.images[0].Label != referenceLabel || p.images[1].Label != queryLabel {
		t.Fatalf("expected reference then query images, got %d parts", len(p.images))
	}
}

func TestVisionJudge_QueryOnly(t *testing.T) {
	p := &fakeProvider{reply: validResponse}
	NewVisionJudge(p, fastConfig()).Judge(context.Background(), Request{Query: testImage(), DishName: "Dal"})

	if len(p.images) != 1 || p.images[0].Label != queryLabel {
		t.Fatalf("expected only the query image, got %d parts", len(p.images))
	}
}

func TestVisionJudge_RetriesTransientFailure(t *testing.T) {
	p := &fakeProvider{reply: validResponse, failures: 1}
	j := NewVisionJudge(p, fastConfig()).Judge(context.Background(), Request{Query: testImage()})

	if !j.Available() {
		t.Fatalf("expected success after retry, got %+v", j)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", p.calls.Load())
	}
}

func TestVisionJudge_GivesUpAfterRetries(t *testing.T) {
	p := &fakeProvider{reply: validResponse, failures: 5}
	j := NewVisionJudge(p, fastConfig()).Judge(context.Background(), Request{Query: testImage()})

	if j.Available() {
		t.Fatal("expected unavailable judgment")
	}
	if j.Source != SourceUnavailable || j.Confidence != ConfidenceNone {
		t.Fatalf("unexpected unavailable shape %+v", j)
	}
	if p.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", p.calls.Load())
	}
}

func TestVisionJudge_Timeout(t *testing.T) {
	p := &fakeProvider{block: true}
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond

	j := NewVisionJudge(p, cfg).Judge(context.Background(), Request{Query: testImage()})
	if j.Available() {
		t.Fatal("expected unavailable judgment on timeout")
	}
}

func TestVisionJudge_NonJSONReply(t *testing.T) {
	p := &fakeProvider{reply: "Looks tasty to me."}
	j := NewVisionJudge(p, fastConfig()).Judge(context.Background(), Request{Query: testImage()})

	if j.Available() {
		t.Fatal("expected unavailable judgment for prose reply")
	}
	if !strings.HasPrefix(j.OverallAssessment, "AI ingredient analysis unavailable") {
		t.Errorf("unexpected assessment %q", j.OverallAssessment)
	}
}

func TestDisabledJudge(t *testing.T) {
	j := DisabledJudge{Reason: "No OPENAI_API_KEY set"}.Judge(context.Background(), Request{Query: testImage()})
	if j.Available() || !strings.Contains(j.OverallAssessment, "No OPENAI_API_KEY set") {
		t.Fatalf("unexpected judgment %+v", j)
	}
}

// --------------------------------------------------
// Providers
// --------------------------------------------------

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "gpt-4o" || len(req.Messages) != 1 || len(req.Messages[0].Content) != 3 {
			http.Error(w, "unexpected request shape", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": validResponse}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-4o", srv.URL+"/v1")
	out, err := p.Complete(context.Background(), []ImagePart{{Label: queryLabel, JPEG: []byte{0xff, 0xd8}}}, "inspect")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := ParseJudgment(out); err != nil {
		t.Fatalf("reply not parseable: %v", err)
	}
}

func TestGeminiProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent") || r.Header.Get("x-goog-api-key") != "g-key" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"inline_data"`) {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": validResponse}}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider("g-key", "", srv.URL)
	out, err := p.Complete(context.Background(), []ImagePart{{Label: queryLabel, JPEG: []byte{0xff, 0xd8}}}, "inspect")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(out, "claude_score") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGeminiProvider_KeyNotInURL(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	NewGeminiProvider("g-key", "", srv.URL).Complete(context.Background(), nil, "inspect")
	if strings.Contains(rawQuery, "g-key") {
		t.Fatalf("api key sent in query string: %q", rawQuery)
	}
}

func TestVisionJudge_TransportErrorDoesNotLeakKey(t *testing.T) {
	// nothing listens on port 1
	provider := NewGeminiProvider("SECRET-KEY-123", "", "http://127.0.0.1:1")
	cfg := fastConfig()
	cfg.MaxRetries = 0

	j := NewVisionJudge(provider, cfg).Judge(context.Background(), Request{Query: testImage(), DishName: "Dal"})
	if j.Available() {
		t.Fatal("expected unavailable judgment")
	}
	if strings.Contains(j.OverallAssessment, "SECRET-KEY-123") || strings.Contains(j.OverallAssessment, "127.0.0.1") {
		t.Fatalf("transport detail leaked into assessment: %q", j.OverallAssessment)
	}
	if j.OverallAssessment != "AI ingredient analysis unavailable: gemini_vision error" {
		t.Errorf("unexpected assessment %q", j.OverallAssessment)
	}
}

func TestGeminiProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGeminiProvider("g-key", "", srv.URL).Complete(context.Background(), nil, "inspect")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
