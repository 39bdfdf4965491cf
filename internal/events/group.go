package events

import (
	"context"
	"sync"
)

// Bits is a set of event flags.
type Bits uint32

// Well-known event bits.
const (
	// LinkConnected is set while the network link is up.
	LinkConnected Bits = 1 << 0
)

// Group is a set of event bits that goroutines can wait on.
//
// Waiting does not consume bits: every waiter sees a bit until someone
// clears it.
type Group struct {
	mu      sync.Mutex
	bits    Bits
	changed chan struct{}
}

// NewGroup returns a group with all bits cleared.
func NewGroup() *Group {
	return &Group{changed: make(chan struct{})}
}

// Set sets bits and wakes waiters.
func (g *Group) Set(bits Bits) {
	g.update(func(b Bits) Bits { return b | bits })
}

// Clear clears bits and wakes waiters.
func (g *Group) Clear(bits Bits) {
	g.update(func(b Bits) Bits { return b &^ bits })
}

// Get returns the current bits.
func (g *Group) Get() Bits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bits
}

// Has reports whether every bit in bits is set.
func (g *Group) Has(bits Bits) bool {
	return g.Get()&bits == bits
}

// WaitFor blocks until every bit in bits is set or ctx is done.
// Returns ctx.Err() on cancellation.
func (g *Group) WaitFor(ctx context.Context, bits Bits) error {
	for {
		g.mu.Lock()
		if g.bits&bits == bits {
			g.mu.Unlock()
			return nil
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitConnection blocks until LinkConnected is set.
func (g *Group) WaitConnection(ctx context.Context) error {
	return g.WaitFor(ctx, LinkConnected)
}

func (g *Group) update(fn func(Bits) Bits) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := fn(g.bits)
	if next == g.bits {
		return
	}
	g.bits = next
	close(g.changed)
	g.changed = make(chan struct{})
}
