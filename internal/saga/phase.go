// Package saga implements the Order Orchestrator's saga state machine and
// the sequential, compensating algorithm that drives order creation (§4.1).
package saga

import "errors"

// Phase tracks the saga's progress through the order-creation algorithm.
// Generalized from the order service's PAYMENT_PENDING/COMPLETED/
// COMPENSATING/FAILED saga status into the six sequential phases §4.1
// actually names, plus the same COMPENSATING branch off any non-terminal
// phase.
type Phase string

const (
	PhaseGate         Phase = "GATE"
	PhasePriced       Phase = "PRICED"
	PhasePersisted    Phase = "PERSISTED"
	PhaseReserved     Phase = "RESERVED"
	PhaseCharged      Phase = "CHARGED"
	PhaseCompleted    Phase = "COMPLETED"
	PhaseCompensating Phase = "COMPENSATING"
	PhaseCancelled    Phase = "CANCELLED"
)

// IsTerminal reports whether the phase is a final saga outcome.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// ErrInvalidTransition is returned by TransitionTo for a disallowed phase change.
var ErrInvalidTransition = errors.New("saga: недопустимый переход фазы")

// allowedTransitions mirrors the order service's allowedTransitions map —
// a static table of legal phase changes, checked before mutating state.
var allowedTransitions = map[Phase][]Phase{
	PhaseGate:         {PhasePriced, PhaseCompensating},
	PhasePriced:       {PhasePersisted, PhaseCompensating},
	PhasePersisted:    {PhaseReserved, PhaseCompensating},
	PhaseReserved:     {PhaseCharged, PhaseCompensating},
	PhaseCharged:      {PhaseCompleted, PhaseCompensating},
	PhaseCompensating: {PhaseCancelled},
}

// CanTransitionTo reports whether moving from current to next is legal.
func CanTransitionTo(current, next Phase) bool {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == next {
			return true
		}
	}
	return false
}

// TransitionTo validates and returns the next phase, or ErrInvalidTransition.
func TransitionTo(current, next Phase) (Phase, error) {
	if !CanTransitionTo(current, next) {
		return current, ErrInvalidTransition
	}
	return next, nil
}
