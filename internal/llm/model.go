package llm

// Confidence tiers reported by the judgment service.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

const SourceUnavailable = "unavailable"

// Judgment is the qualitative, ingredient-level verdict on a dish photo.
// Score is nil when the service could not be used; a real score of 0 is a
// valid (very bad) verdict and must not be confused with that.
type Judgment struct {
	Score              *int     `json:"claude_score"`
	MissingIngredients []string `json:"missing_ingredients"`
	IssuesFound        []string `json:"issues_found"`
	CorrectElements    []string `json:"correct_elements"`
	OverallAssessment  string   `json:"overall_assessment"`
	Confidence         string   `json:"confidence"`
	Source             string   `json:"analysis_source"`
}

func (j Judgment) Available() bool {
	return j.Score != nil
}

// Unavailable builds the judgment returned whenever the service cannot be
// used. reason is shown to operators.
func Unavailable(reason string) Judgment {
	return Judgment{
		MissingIngredients: []string{},
		IssuesFound:        []string{},
		CorrectElements:    []string{},
		OverallAssessment:  "AI ingredient analysis unavailable: " + reason,
		Confidence:         ConfidenceNone,
		Source:             SourceUnavailable,
	}
}
