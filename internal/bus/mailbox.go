package bus

import (
	"context"
	"sync"
	"time"
)

// MailboxCapacity is the fixed number of envelopes a mailbox can buffer.
const MailboxCapacity = 32

// WaitForever makes Mailbox.Receive and Endpoint.TryReceive block until an
// envelope arrives or the context is cancelled.
const WaitForever time.Duration = -1

// Mailbox is a bounded FIFO of envelopes owned by exactly one endpoint.
//
// Pushing never blocks: when the mailbox is full the push fails and the
// caller keeps ownership of the envelope.
type Mailbox struct {
	ch        chan *Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates an empty mailbox with MailboxCapacity slots.
func NewMailbox() *Mailbox {
	return &Mailbox{
		ch:   make(chan *Envelope, MailboxCapacity),
		done: make(chan struct{}),
	}
}

// Close wakes every pending Receive, which then returns false.
// Buffered envelopes stay available to TryPop. Safe to call more than once.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// TryPush enqueues env without blocking.
// Returns false if the mailbox is full.
func (m *Mailbox) TryPush(env *Envelope) bool {
	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// TryPop dequeues one envelope without blocking.
func (m *Mailbox) TryPop() (*Envelope, bool) {
	select {
	case env := <-m.ch:
		return env, true
	default:
		return nil, false
	}
}

// Receive waits up to wait for an envelope.
//
// Parameters:
//   - wait: 0 polls once, WaitForever (any negative value) blocks until an
//     envelope arrives, a positive value bounds the wait
//
// Returns false when the wait elapsed, ctx was cancelled or the mailbox was
// closed first.
func (m *Mailbox) Receive(ctx context.Context, wait time.Duration) (*Envelope, bool) {
	if wait == 0 {
		return m.TryPop()
	}

	if wait < 0 {
		select {
		case env := <-m.ch:
			return env, true
		case <-m.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case env := <-m.ch:
		return env, true
	case <-timer.C:
		return nil, false
	case <-m.done:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the number of buffered envelopes.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Cap returns the mailbox capacity.
func (m *Mailbox) Cap() int {
	return cap(m.ch)
}
