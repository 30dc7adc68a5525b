package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender accepts commands for delivery to participants.
// Send returns once the command is queued, not once it is published.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// Queue is the bounded outbound channel between the dispatcher and the
// Publisher. A full queue applies backpressure to Send.
type Queue struct {
	ch     chan Command
	closed chan struct{}
	once   sync.Once
}

// NewQueue creates a queue holding up to size pending commands.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:     make(chan Command, size),
		closed: make(chan struct{}),
	}
}

// Send stamps cmd with a message id and timestamp if missing and queues it.
func (q *Queue) Send(ctx context.Context, cmd Command) error {
	if cmd.MessageID == "" {
		cmd.MessageID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}

	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- cmd:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan Command {
	return q.ch
}

// Close stops further sends. Commands already queued stay readable from C.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// Done is closed once Close has been called.
func (q *Queue) Done() <-chan struct{} {
	return q.closed
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.ch)
}
