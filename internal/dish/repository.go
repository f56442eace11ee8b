package dish

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("dish not found")
	ErrAlreadyExists  = errors.New("dish already exists")
	ErrInvalidDish    = errors.New("invalid dish")
	ErrCorruptProfile = errors.New("corrupt dish profile")
)

// Repository persists one record per dish. Get returns a private copy; Save
// fully overwrites. List skips records it cannot read.
type Repository interface {
	Get(ctx context.Context, dishID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, dishID string) error
	List(ctx context.Context) ([]*Profile, error)
}
