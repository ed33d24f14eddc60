package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store for tests and one-shot tooling.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]Plan
	apps  map[string]Application
	order []string // stable application iteration order
}

// NewMemoryStore returns a MemoryStore seeded with the given plans and
// applications. Seed data is copied so callers cannot mutate internal state.
func NewMemoryStore(plans []Plan, apps []Application) *MemoryStore {
	s := &MemoryStore{
		plans: make(map[string]Plan, len(plans)),
		apps:  make(map[string]Application, len(apps)),
	}
	for _, p := range plans {
		s.plans[p.ID] = p
	}
	for _, a := range apps {
		a.PlanIDs = slices.Clone(a.PlanIDs)
		s.apps[a.ID] = a
		s.order = append(s.order, a.ID)
	}
	return s
}

func (s *MemoryStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	plan := p
	return &plan, nil
}

func (s *MemoryStore) ListPlans(ctx context.Context, applicationID string) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[applicationID]
	if !ok {
		return nil, ErrApplicationNotFound
	}

	plans := make([]Plan, 0, len(app.PlanIDs))
	for _, id := range app.PlanIDs {
		if p, ok := s.plans[id]; ok {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (s *MemoryStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	app := a
	app.PlanIDs = slices.Clone(a.PlanIDs)
	return &app, nil
}

func (s *MemoryStore) ListApplications(ctx context.Context) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]Application, 0, len(s.order))
	for _, id := range s.order {
		a := s.apps[id]
		a.PlanIDs = slices.Clone(a.PlanIDs)
		apps = append(apps, a)
	}
	return apps, nil
}

func (s *MemoryStore) AddApplicationPlan(ctx context.Context, applicationID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[applicationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	app.AddPlan(planID)
	s.apps[applicationID] = app
	return nil
}

func (s *MemoryStore) SetDefaultPlan(ctx context.Context, applicationID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[applicationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	app.DefaultPlanID = planID
	s.apps[applicationID] = app
	return nil
}

// AddPlanDefinition registers a plan, keeping prior versions untouched.
func (s *MemoryStore) AddPlanDefinition(plan Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}
