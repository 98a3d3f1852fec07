package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherBusy is returned when the queue is full.
var ErrDispatcherBusy = errors.New("dispatcher queue is full")

// ErrDispatcherStopped is returned for jobs submitted after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Job is one unit of background work. Jobs sharing a Key are run in
// submission order and take turns with other keys.
type Job struct {
	ID  string
	Key string
	Run func(ctx context.Context) error

	ticket *Ticket
}

// Ticket tracks a submitted job.
type Ticket struct {
	id   string
	done chan struct{}
	once sync.Once
	err  error
}

func newTicket(id string) *Ticket {
	return &Ticket{id: id, done: make(chan struct{})}
}

func (t *Ticket) ID() string { return t.id }

// Done is closed when the job has finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err is the job result; only meaningful after Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticket) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
