package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
// One mutex covers every commit, so ApplyTransition is trivially atomic.
type MemoryStore struct {
	mu            sync.Mutex
	subscriptions map[string]*Subscription // keyed by provider subscription ID
	events        map[string]*EventRecord
	usage         OfferUsageCommitter // optional, may be nil
}

// NewMemoryStore creates an empty in-memory store. usage may be nil when
// no offer usage tracking is wired.
func NewMemoryStore(usage OfferUsageCommitter) *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]*Subscription),
		events:        make(map[string]*EventRecord),
		usage:         usage,
	}
}

func (s *MemoryStore) GetByProviderID(_ context.Context, providerSubID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[providerSubID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (*EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, sub *Subscription, record *EventRecord, offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[record.EventID]; exists {
		return ErrEventAlreadyProcessed
	}

	// Usage goes first: an exhausted offer must fail the whole commit before
	// anything else lands.
	if offerID != "" && s.usage != nil {
		if err := s.usage.IncrementUsage(ctx, offerID); err != nil {
			return err
		}
	}

	if sub != nil {
		cp := *sub
		s.subscriptions[sub.ProviderSubID] = &cp
	}
	rec := *record
	s.events[record.EventID] = &rec
	return nil
}

func (s *MemoryStore) PruneEvents(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for id, rec := range s.events {
		if rec.ProcessedAt.Before(olderThan) {
			delete(s.events, id)
			pruned++
		}
	}
	return pruned, nil
}
