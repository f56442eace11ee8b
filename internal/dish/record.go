package dish

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is written into every persisted profile.
const SchemaVersion = 1

type record struct {
	SchemaVersion int              `json:"schema_version"`
	DishID        string           `json:"dish_id"`
	DishName      string           `json:"dish_name"`
	Ingredients   []string         `json:"ingredients"`
	References    []ReferenceEntry `json:"references"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func encodeProfile(p *Profile) ([]byte, error) {
	refs := p.References
	if refs == nil {
		refs = []ReferenceEntry{}
	}
	ingredients := p.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}

	return json.Marshal(record{
		SchemaVersion: SchemaVersion,
		DishID:        p.DishID,
		DishName:      p.DishName,
		Ingredients:   ingredients,
		References:    refs,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
}

func decodeProfile(data []byte) (*Profile, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptProfile, err)
	}
	if r.SchemaVersion < 1 || r.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema_version %d", ErrCorruptProfile, r.SchemaVersion)
	}
	if r.DishID == "" {
		return nil, fmt.Errorf("%w: missing dish_id", ErrCorruptProfile)
	}

	return &Profile{
		DishID:      r.DishID,
		DishName:    r.DishName,
		Ingredients: r.Ingredients,
		References:  r.References,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}
