// Package statemachine implements a small finite state machine with guarded
// transitions. The subscription lifecycle builds its transition table on it;
// because subscription state is persisted, the package also supports firing
// transitions from an externally supplied state.
package statemachine

import "context"

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during a transition. Returning an error
// prevents the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition is allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for the transition to proceed
	Actions []Action // Executed in order before the state change
}

// StateMachine defines the core finite state machine operations.
type StateMachine interface {
	Current() State
	AddTransition(from, to State, event Event, guards []Guard, actions []Action) error
	Fire(ctx context.Context, event Event, data any) error
	FireFrom(ctx context.Context, from State, event Event, data any) (State, error)
	CanFire(ctx context.Context, event Event, data any) bool
	CanFireFrom(ctx context.Context, from State, event Event, data any) bool
	Reset() error
}

// StringState provides a string-based State implementation.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a string-based Event implementation.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
