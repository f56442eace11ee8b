package llm

import "strings"

const (
	referenceLabel = "**REFERENCE IMAGE** (how the dish should look):"
	queryLabel     = "**IMAGE TO EVALUATE** (what was actually prepared):"
)

// BuildJudgePrompt returns the inspection instructions sent after the images.
func BuildJudgePrompt(dishName string, ingredients []string, hasReference bool) string {
	expected := "not specified"
	if len(ingredients) > 0 {
		expected = strings.Join(ingredients, ", ")
	}

	task := "Analyze the evaluation image against the expected ingredients listed."
	if hasReference {
		task = "Compare the EVALUATION IMAGE against the REFERENCE IMAGE above."
	}

	return `You are a professional food quality inspector analyzing a prepared dish.

Dish name: ` + dishName + `
Expected ingredients/components: ` + expected + `

` + task + `

Respond ONLY with a raw JSON object, no markdown, no backticks:

{
  "claude_score": <integer 0-100>,
  "missing_ingredients": [<list of absent ingredients>],
  "issues_found": [<list of problems with presentation, color, portion>],
  "correct_elements": [<list of things that look right>],
  "overall_assessment": "<one sentence summary>",
  "confidence": "<high|medium|low>"
}`
}
