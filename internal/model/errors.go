package model

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors shared by every coordinator package.
//
// Check them with errors.Is; callers wrap them with context:
//
//	if errors.Is(err, model.ErrInvalidState) {
//	    // 409
//	}
var (
	// ErrValidation is returned for malformed or self-inconsistent requests.
	ErrValidation = errors.New("acm: validation failed")

	// ErrInvalidOrder is returned when an order is unspecified or not
	// applicable through the requested operation.
	ErrInvalidOrder = fmt.Errorf("%w: invalid order", ErrValidation)

	// ErrInvalidState is returned when a transition is not legal from the
	// current state, or another transition is already in flight.
	ErrInvalidState = errors.New("acm: invalid state")

	// ErrDefinitionMismatch is returned when an element references a
	// definition or version absent from the commissioned template.
	ErrDefinitionMismatch = errors.New("acm: element definition mismatch")

	// ErrNotFound is returned for unknown instances, definitions, elements
	// and participants.
	ErrNotFound = errors.New("acm: not found")

	// ErrAlreadyDefined is returned when creating an entity whose identity
	// already exists.
	ErrAlreadyDefined = errors.New("acm: already defined")

	// ErrTimeout is the outcome of a transition whose phase deadline passed.
	ErrTimeout = errors.New("acm: transition timed out")

	// ErrPartialFailure is the outcome of a transition in which some elements
	// succeeded and some failed.
	ErrPartialFailure = errors.New("acm: partial failure")
)

// ErrorList collects validation messages so a request can report every
// problem at once. It matches ErrValidation with errors.Is.
type ErrorList []string

// Addf appends a formatted message.
func (l *ErrorList) Addf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// Err returns nil when the list is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l ErrorList) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(l, "; ")
}

// Is makes errors.Is(list, ErrValidation) true.
func (l ErrorList) Is(target error) bool {
	return target == ErrValidation
}

// Messages extracts the individual messages from err. A plain error yields a
// single message.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return append([]string(nil), list...)
	}
	return []string{err.Error()}
}
