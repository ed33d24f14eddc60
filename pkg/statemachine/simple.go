package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// SimpleStateMachine is a thread-safe in-memory state machine. Transitions
// are indexed [fromState][event] for O(1) lookup.
type SimpleStateMachine struct {
	initialState State
	currentState State
	transitions  map[string]map[string][]Transition
	mu           sync.RWMutex
}

func newSimpleStateMachine(initialState State) *SimpleStateMachine {
	return &SimpleStateMachine{
		initialState: initialState,
		currentState: initialState,
		transitions:  make(map[string]map[string][]Transition),
	}
}

func (sm *SimpleStateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *SimpleStateMachine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	fromName := from.Name()
	eventName := event.Name()

	if _, ok := sm.transitions[fromName]; !ok {
		sm.transitions[fromName] = make(map[string][]Transition)
	}

	// Multiple transitions per from/event pair support guard-based branching.
	sm.transitions[fromName][eventName] = append(sm.transitions[fromName][eventName], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire applies event against the machine's own current state.
func (sm *SimpleStateMachine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	next, err := sm.fireLocked(ctx, sm.currentState, event, data)
	if err != nil {
		return err
	}
	sm.currentState = next
	return nil
}

// FireFrom applies event against an externally supplied state and returns the
// resulting state. The machine's own current state is not consulted or
// mutated, which allows one shared transition table to serve many persisted
// entities.
func (sm *SimpleStateMachine) FireFrom(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil {
		return nil, ErrInvalidTransition
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.fireLocked(ctx, from, event, data)
}

func (sm *SimpleStateMachine) fireLocked(ctx context.Context, from State, event Event, data any) (State, error) {
	fromName := from.Name()
	eventName := event.Name()

	transitions, ok := sm.transitions[fromName][eventName]
	if !ok || len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(fromName, eventName)
	}

	// First transition with passing guards wins; registration order sets priority.
	var valid *Transition
	for i, t := range transitions {
		if guardsPass(ctx, t.Guards, from, event, data) {
			valid = &transitions[i]
			break
		}
	}
	if valid == nil {
		return nil, NewErrTransitionRejected(fromName, eventName)
	}

	// Any action failure aborts the transition.
	for _, action := range valid.Actions {
		if action != nil {
			if err := action(ctx, from, valid.To, event, data); err != nil {
				return nil, fmt.Errorf("action failed: %w", err)
			}
		}
	}

	return valid.To, nil
}

func (sm *SimpleStateMachine) CanFire(ctx context.Context, event Event, data any) bool {
	sm.mu.RLock()
	from := sm.currentState
	sm.mu.RUnlock()
	return sm.CanFireFrom(ctx, from, event, data)
}

func (sm *SimpleStateMachine) CanFireFrom(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil {
		return false
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	transitions, ok := sm.transitions[from.Name()][event.Name()]
	if !ok {
		return false
	}
	for _, t := range transitions {
		if guardsPass(ctx, t.Guards, from, event, data) {
			return true
		}
	}
	return false
}

func (sm *SimpleStateMachine) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.currentState = sm.initialState
	return nil
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
