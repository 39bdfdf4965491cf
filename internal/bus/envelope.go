package bus

import "github.com/google/uuid"

// Envelope carries one command from a sender along a fixed route.
//
// The route is snapshotted from Registry.Destination when the envelope is
// built and is consumed from its tail, one address per hop. Membership
// changes after the snapshot do not affect an envelope in flight.
type Envelope struct {
	// ID correlates log lines for a single send.
	ID string

	// From is the sender's endpoint address.
	From Address

	// To is the logical target (endpoint or group) the sender addressed.
	To Address

	// Command is the payload.
	Command Command

	remaining []Address
	hops      int
}

// NewEnvelope builds an envelope whose route is a copy of route.
func NewEnvelope(from, to Address, cmd Command, route []Address) *Envelope {
	r := make([]Address, len(route))
	copy(r, route)
	return &Envelope{
		ID:        uuid.Must(uuid.NewV7()).String(),
		From:      from,
		To:        to,
		Command:   cmd,
		remaining: r,
	}
}

// Remaining returns a copy of the addresses not yet consumed, in storage
// order. The next hop takes the last element.
func (e *Envelope) Remaining() []Address {
	out := make([]Address, len(e.remaining))
	copy(out, e.remaining)
	return out
}

// Exhausted reports whether no destinations remain.
func (e *Envelope) Exhausted() bool {
	return len(e.remaining) == 0
}

// popBack removes and returns the last remaining destination.
func (e *Envelope) popBack() Address {
	n := len(e.remaining) - 1
	a := e.remaining[n]
	e.remaining = e.remaining[:n]
	return a
}
