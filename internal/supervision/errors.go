package supervision

import (
	"errors"
	"fmt"
)

// Reasons a participant message is dropped. Check with errors.Is; every
// drop reason matches ErrDropped.
var (
	ErrDropped = errors.New("supervision: message dropped")

	ErrUnknownComposition = fmt.Errorf("%w: unknown composition", ErrDropped)
	ErrUnknownElement     = fmt.Errorf("%w: unknown element", ErrDropped)
	ErrStaleParticipant   = fmt.Errorf("%w: participant does not own element", ErrDropped)
	ErrUnreachableState   = fmt.Errorf("%w: state not reachable from the element's current state", ErrDropped)
	ErrUnknownDefinition  = fmt.Errorf("%w: unknown composition definition", ErrDropped)
	ErrUnexpectedAck      = fmt.Errorf("%w: definition is not priming or depriming", ErrDropped)
)
