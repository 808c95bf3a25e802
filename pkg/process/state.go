package process

import (
	"errors"
	"fmt"
)

// State transition errors.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrTaskNotFound      = errors.New("task not found")
)

// State is the lifecycle state of a task.
type State int

const (
	// StateReady indicates the task is waiting for the CPU.
	StateReady State = iota
	// StateRunning indicates the task holds the CPU.
	StateRunning
	// StateBlocked indicates the task is suspended until woken.
	StateBlocked
	// StateDead indicates the task has exited. It is terminal.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlocked:
		return "BLOCKED"
	case StateDead:
		return "DEAD"
	}
	return "UNKNOWN"
}

// StateTransition represents a valid state transition.
type StateTransition struct {
	From State
	To   State
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Selected by the scheduler
	{From: StateReady, To: StateRunning},
	// Displaced by the scheduler
	{From: StateRunning, To: StateReady},
	// Suspended
	{From: StateRunning, To: StateBlocked},
	{From: StateReady, To: StateBlocked},
	// Woken
	{From: StateBlocked, To: StateReady},
	// Exit
	{From: StateRunning, To: StateDead},
	{From: StateReady, To: StateDead},
	{From: StateBlocked, To: StateDead},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to State) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// transitionTo moves the task to a new state.
func (t *Task) transitionTo(to State) error {
	if !IsValidTransition(t.State, to) {
		return fmt.Errorf("task %d %s -> %s: %w", t.ID, t.State, to, ErrInvalidTransition)
	}
	t.State = to
	return nil
}

// mustTransition is transitionTo for a transition the caller's state checks
// already guarantee. An invalid one is a scheduler bug and panics.
func (t *Task) mustTransition(to State) {
	if err := t.transitionTo(to); err != nil {
		panic(err)
	}
}
