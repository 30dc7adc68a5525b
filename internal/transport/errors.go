package transport

import "errors"

// Errors returned by the transport. Check with errors.Is.
var (
	// ErrInvalidMessage is returned when a payload cannot be decoded or is
	// missing required fields.
	ErrInvalidMessage = errors.New("transport: invalid message")

	// ErrQueueClosed is returned by Queue.Send after Close.
	ErrQueueClosed = errors.New("transport: outbound queue closed")
)
