package dish

import (
	"context"
	"sort"
	"sync"
)

type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, dishID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[dishID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InMemoryRepository) Save(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[p.DishID] = p.Clone()
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, dishID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[dishID]; !ok {
		return ErrNotFound
	}
	delete(r.profiles, dishID)
	return nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DishID < out[j].DishID })
	return out, nil
}
