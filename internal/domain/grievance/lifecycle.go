package grievance

import "fmt"

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusInProgress: {},
		StatusResolved:   {},
		StatusRejected:   {},
	},
	StatusInProgress: {
		StatusResolved: {},
		StatusRejected: {},
	},
}

func IsTerminal(status Status) bool {
	return status == StatusResolved || status == StatusRejected
}

func CanTransition(from Status, to Status) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// EnsureTransition returns ErrInvalidTransition when from -> to is not a forward move.
func EnsureTransition(from Status, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
