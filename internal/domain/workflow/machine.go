package workflow

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a transition should be allowed. Guards read
// current persistent state (fresh party counts, for example) through the
// context-carrying closures the engine installs.
type GuardFunc func(ctx context.Context) (bool, error)

// StateMachine tracks a report's current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has a configured transition in the
	// current state (guards are not evaluated)
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state
	// if the edge exists and its guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// Peek returns the target state for a trigger without firing it
	Peek(trigger Trigger) (State, bool)

	// PermittedTriggers returns all triggers configured in the current state
	PermittedTriggers() []Trigger
}

type transition struct {
	toState State
	guard   GuardFunc
}

// Builder configures the legal transition graph. Each (state, trigger) pair
// maps to exactly one target state.
type Builder struct {
	transitions map[State]map[Trigger]transition
}

// NewBuilder creates a new state machine builder
func NewBuilder() *Builder {
	return &Builder{
		transitions: make(map[State]map[Trigger]transition),
	}
}

// Permit allows a trigger to transition from one state to another
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	return b.PermitIf(from, trigger, to, nil)
}

// PermitIf allows a trigger to transition if the guard passes
func (b *Builder) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have outgoing transitions", from))
	}

	edges, ok := b.transitions[from]
	if !ok {
		edges = make(map[Trigger]transition)
		b.transitions[from] = edges
	}
	edges[trigger] = transition{toState: to, guard: guard}
	return b
}

// Build creates a state machine instance positioned at the given state. The
// transition graph is shared and never mutated after Build.
func (b *Builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}
	return &stateMachine{
		currentState: initial,
		transitions:  b.transitions,
	}
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[Trigger]transition
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.currentState][trigger]
	return ok
}

func (m *stateMachine) Peek(trigger Trigger) (State, bool) {
	t, ok := m.transitions[m.currentState][trigger]
	if !ok {
		return "", false
	}
	return t.toState, true
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	t, ok := m.transitions[m.currentState][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	if t.guard != nil {
		pass, err := t.guard(ctx)
		if err != nil {
			return fmt.Errorf("guard for trigger %s from state %s: %w", trigger, m.currentState, err)
		}
		if !pass {
			return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
		}
	}

	m.currentState = t.toState
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	edges := m.transitions[m.currentState]
	triggers := make([]Trigger, 0, len(edges))
	for trigger := range edges {
		triggers = append(triggers, trigger)
	}
	return triggers
}
