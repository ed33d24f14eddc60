package statemachine

import "fmt"

// Option configures a state machine during construction.
type Option func(*SimpleStateMachine) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption func(*transitionConfig)

// TransitionDef defines a transition between states.
type TransitionDef struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

type transitionConfig struct {
	guards  []Guard
	actions []Action
}

// New creates a new state machine with the given initial state and options.
func New(initialState State, opts ...Option) (StateMachine, error) {
	if initialState == nil {
		return nil, fmt.Errorf("initial state cannot be nil")
	}

	sm := newSimpleStateMachine(initialState)
	for _, opt := range opts {
		if err := opt(sm); err != nil {
			return nil, err
		}
	}
	return sm, nil
}

// MustNew is like New but panics if any option fails, so a broken transition
// table stops the process at startup.
func MustNew(initialState State, opts ...Option) StateMachine {
	sm, err := New(initialState, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return sm
}

// WithTransition adds a single transition to the state machine.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(sm *SimpleStateMachine) error {
		cfg := &transitionConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		return sm.AddTransition(from, to, event, cfg.guards, cfg.actions)
	}
}

// WithTransitions adds multiple transitions at once.
func WithTransitions(transitions []TransitionDef) Option {
	return func(sm *SimpleStateMachine) error {
		for i, t := range transitions {
			if err := sm.AddTransition(t.From, t.To, t.Event, t.Guards, t.Actions); err != nil {
				return fmt.Errorf("failed to add transition[%d]: %w", i, err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard(guard Guard) TransitionOption {
	return func(cfg *transitionConfig) {
		if guard != nil {
			cfg.guards = append(cfg.guards, guard)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction(action Action) TransitionOption {
	return func(cfg *transitionConfig) {
		if action != nil {
			cfg.actions = append(cfg.actions, action)
		}
	}
}
