package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var (
	ErrNonJSON      = errors.New("service returned non-JSON response")
	ErrMissingScore = errors.New("response has no claude_score")
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripCodeFence removes a surrounding ```json ... ``` wrapper, if present.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return s
}

type rawJudgment struct {
	Score              *float64 `json:"claude_score"`
	MissingIngredients []string `json:"missing_ingredients"`
	IssuesFound        []string `json:"issues_found"`
	CorrectElements    []string `json:"correct_elements"`
	OverallAssessment  string   `json:"overall_assessment"`
	Confidence         string   `json:"confidence"`
}

// ParseJudgment decodes the service's text output. The body must be a strict
// JSON object once code fences are stripped.
func ParseJudgment(raw string) (Judgment, error) {
	body := StripCodeFence(raw)
	if !json.Valid([]byte(body)) {
		return Judgment{}, ErrNonJSON
	}

	var r rawJudgment
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", ErrNonJSON, err)
	}
	if r.Score == nil {
		return Judgment{}, ErrMissingScore
	}

	score := int(math.Round(math.Min(math.Max(*r.Score, 0), 100)))

	return Judgment{
		Score:              &score,
		MissingIngredients: orEmpty(r.MissingIngredients),
		IssuesFound:        orEmpty(r.IssuesFound),
		CorrectElements:    orEmpty(r.CorrectElements),
		OverallAssessment:  strings.TrimSpace(r.OverallAssessment),
		Confidence:         normalizeConfidence(r.Confidence),
	}, nil
}

func normalizeConfidence(c string) string {
	switch c = strings.ToLower(strings.TrimSpace(c)); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	default:
		return ConfidenceMedium
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
