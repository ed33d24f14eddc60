package offer

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory offer store for tests and local development.
// It also implements the usage-commit side used by the billing store.
type MemoryStore struct {
	mu     sync.RWMutex
	offers map[string]Offer
}

// NewMemoryStore returns a MemoryStore seeded with the given offers.
func NewMemoryStore(offers ...Offer) *MemoryStore {
	s := &MemoryStore{offers: make(map[string]Offer, len(offers))}
	for _, o := range offers {
		o.PlanIDs = slices.Clone(o.PlanIDs)
		s.offers[o.ID] = o
	}
	return s
}

func (s *MemoryStore) ListByApplication(ctx context.Context, applicationID string) ([]Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Offer
	for _, o := range s.offers {
		if o.ApplicationID == applicationID {
			o.PlanIDs = slices.Clone(o.PlanIDs)
			out = append(out, o)
		}
	}
	return out, nil
}

// Get returns an offer by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOfferNotFound, id)
	}
	o.PlanIDs = slices.Clone(o.PlanIDs)
	return &o, nil
}

// IncrementUsage applies one guarded usage increment. The capacity check and
// the increment happen under one lock, so CurrentUsage can never pass
// MaxUsage no matter how many commits race.
func (s *MemoryStore) IncrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOfferNotFound, id)
	}
	if o.UsageExhausted() {
		return fmt.Errorf("%w: %s", ErrUsageExceeded, id)
	}
	o.CurrentUsage++
	s.offers[id] = o
	return nil
}
