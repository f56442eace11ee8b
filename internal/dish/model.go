package dish

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"foodvision/internal/vision"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ReferenceEntry is one training photo: its features plus where the original
// image is stored. Entries are never edited once appended.
type ReferenceEntry struct {
	Features   vision.FeatureVector `json:"features"`
	SourcePath string               `json:"source_path"`
	AddedAt    time.Time            `json:"added_at"`
}

type Profile struct {
	DishID      string
	DishName    string
	Ingredients []string
	References  []ReferenceEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ready reports whether the dish has at least one reference to score against.
func (p *Profile) Ready() bool {
	return len(p.References) > 0
}

func (p *Profile) FeatureVectors() []vision.FeatureVector {
	out := make([]vision.FeatureVector, len(p.References))
	for i, r := range p.References {
		out[i] = r.Features
	}
	return out
}

// Clone returns a deep copy so callers never share slices with a repository.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Ingredients = append([]string(nil), p.Ingredients...)
	c.References = make([]ReferenceEntry, len(p.References))
	for i, r := range p.References {
		c.References[i] = ReferenceEntry{
			Features: vision.FeatureVector{
				Embedding:      append([]float64(nil), r.Features.Embedding...),
				ColorHistogram: append([]float64(nil), r.Features.ColorHistogram...),
			},
			SourcePath: r.SourcePath,
			AddedAt:    r.AddedAt,
		}
	}
	return &c
}

// Summary is the API view of a profile. Feature vectors are never exposed.
type Summary struct {
	DishID           string    `json:"dish_id"`
	DishName         string    `json:"dish_name"`
	Ingredients      []string  `json:"ingredients"`
	ReferenceCount   int       `json:"reference_count"`
	ReadyForAnalysis bool      `json:"ready_for_analysis"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p *Profile) Summary() Summary {
	ingredients := p.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return Summary{
		DishID:           p.DishID,
		DishName:         p.DishName,
		Ingredients:      ingredients,
		ReferenceCount:   len(p.References),
		ReadyForAnalysis: p.Ready(),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: dish_id must be 1-64 characters of letters, digits, '_' or '-'", ErrInvalidDish)
	}
	return nil
}

// NormalizeIngredients trims entries and drops blanks, keeping order.
func NormalizeIngredients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
