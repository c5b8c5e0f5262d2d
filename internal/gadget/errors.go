package gadget

import (
	"errors"
	"fmt"
)

// Domain errors for the gadget package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, gadget.ErrGadgetNotFound) {
//	    // handle not found case
//	}
var (
	// ErrGadgetNotFound is returned when a gadget ID does not exist.
	ErrGadgetNotFound = errors.New("gadget: not found")

	// ErrTransitionNotAllowed is returned when a status update targets a
	// status that only the dedicated operations may set.
	ErrTransitionNotAllowed = errors.New("gadget: transition not allowed")

	// ErrGadgetTerminal is returned when a status update targets a gadget
	// that is already decommissioned or destroyed.
	ErrGadgetTerminal = errors.New("gadget: terminal status")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("gadget: invalid status")
)

// TransitionError reports a status update asking for a terminal status.
type TransitionError struct {
	Target Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Changing the status to %s is not allowed. "+
		"Decommissioning or destroying a gadget requires a different method.", e.Target)
}

// Is matches ErrTransitionNotAllowed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrTransitionNotAllowed
}

// TerminalError reports a status update on a gadget that can no longer change.
type TerminalError struct {
	Current Status
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("The gadget is already %s and cannot be modified further", e.Current)
}

// Is matches ErrGadgetTerminal.
func (e *TerminalError) Is(target error) bool {
	return target == ErrGadgetTerminal
}
