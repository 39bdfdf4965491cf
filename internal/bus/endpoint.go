package bus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Router is the set of registry operations an Endpoint depends on.
// *Registry implements it.
type Router interface {
	Connect(mb *Mailbox) (Address, error)
	Disconnect(mb *Mailbox)
	Join(grp, member Address) error
	JoinName(name string, member Address) (Address, error)
	Leave(grp, member Address)
	LeaveName(name string, member Address)
	Destination(addr Address) []Address
	ResolveGroupAddress(name string) Address
	Forward(env *Envelope) bool
}

// Endpoint is a bus participant with its own mailbox and address.
//
// An endpoint is driven by a single goroutine that calls TryReceive (or
// Serve). Send may additionally be called from other goroutines, for
// example from MQTT or HTTP callbacks.
//
// Lifecycle:
//
//	NewEndpoint → Initialize → Send / TryReceive ... → Close
//
// Close is terminal: a closed endpoint cannot be initialised again.
type Endpoint struct {
	router  Router
	handler Visitor
	logger  Logger

	mu      sync.RWMutex
	mailbox *Mailbox
	addr    Address
	closed  bool
}

// NewEndpoint creates an endpoint routed through router.
// Commands received are dispatched to handler; nil ignores every command.
func NewEndpoint(router Router, handler Visitor) *Endpoint {
	if handler == nil {
		handler = NopVisitor{}
	}
	return &Endpoint{
		router:  router,
		handler: handler,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the endpoint.
func (e *Endpoint) SetLogger(logger Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// Initialize allocates the mailbox (once) and connects it to the router.
// Safe to call repeatedly; the address does not change.
//
// Returns true iff the endpoint has a mailbox and a valid address.
func (e *Endpoint) Initialize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	if e.mailbox == nil {
		e.mailbox = NewMailbox()
	}
	if !e.addr.IsValid() {
		addr, err := e.router.Connect(e.mailbox)
		if err != nil {
			e.logger.Error("endpoint connect failed", "error", err)
			return false
		}
		e.addr = addr
	}
	return e.addr.IsValid()
}

// Address returns the endpoint's address, or Invalid before Initialize.
func (e *Endpoint) Address() Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.addr
}

// IsConnected reports whether the endpoint can send and receive.
func (e *Endpoint) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mailbox != nil && e.addr.IsValid()
}

// Send delivers cmd to an endpoint or every member of a group.
//
// The destination list is fixed at the moment of the call. Send performs
// only the first hop; each receiving endpoint relays the envelope onward
// after handling it. Delivery failures are not reported.
func (e *Endpoint) Send(to Address, cmd Command) error {
	if !to.IsValid() {
		return ErrInvalidAddress
	}
	if cmd == nil {
		return ErrNilCommand
	}

	from := e.Address()
	if !from.IsValid() {
		return ErrNotConnected
	}

	env := NewEnvelope(from, to, cmd, e.router.Destination(to))
	e.router.Forward(env)
	return nil
}

// SendName delivers cmd to every member of the named group.
func (e *Endpoint) SendName(name string, cmd Command) error {
	if name == "" {
		return ErrInvalidGroupName
	}
	grp := e.router.ResolveGroupAddress(name)
	if !grp.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	return e.Send(grp, cmd)
}

// Join adds the endpoint to a group.
func (e *Endpoint) Join(grp Address) error {
	addr := e.Address()
	if !addr.IsValid() {
		return ErrNotConnected
	}
	return e.router.Join(grp, addr)
}

// JoinName adds the endpoint to the named group and returns its address.
func (e *Endpoint) JoinName(name string) (Address, error) {
	addr := e.Address()
	if !addr.IsValid() {
		return Invalid, ErrNotConnected
	}
	return e.router.JoinName(name, addr)
}

// Leave removes the endpoint from a group.
func (e *Endpoint) Leave(grp Address) {
	if addr := e.Address(); addr.IsValid() {
		e.router.Leave(grp, addr)
	}
}

// LeaveName removes the endpoint from the named group.
func (e *Endpoint) LeaveName(name string) {
	if addr := e.Address(); addr.IsValid() {
		e.router.LeaveName(name, addr)
	}
}

// TryReceive waits for one envelope, handles it, and relays it onward.
//
// Parameters:
//   - ctx: cancels an in-progress wait
//   - wait: 0 polls, WaitForever blocks, a positive value bounds the wait
//
// Returns true if an envelope was handled. When nothing arrives the whole
// wait elapses before returning false, including on an endpoint that is not
// connected. A pending wait ends early when ctx is cancelled or the endpoint
// is closed.
func (e *Endpoint) TryReceive(ctx context.Context, wait time.Duration) bool {
	e.mu.RLock()
	mb := e.mailbox
	e.mu.RUnlock()

	if mb == nil {
		sleep(ctx, wait)
		return false
	}

	env, ok := mb.Receive(ctx, wait)
	if !ok {
		return false
	}

	e.dispatch(env)
	e.router.Forward(env)
	return true
}

// Serve calls TryReceive until ctx is cancelled or the endpoint is closed.
// A zero wait is treated as WaitForever.
func (e *Endpoint) Serve(ctx context.Context, wait time.Duration) {
	if wait == 0 {
		wait = WaitForever
	}
	for ctx.Err() == nil && e.IsConnected() {
		e.TryReceive(ctx, wait)
	}
}

// Close disconnects the endpoint and relays every buffered envelope onward
// so downstream subscribers still receive them. The mailbox is released and
// a TryReceive blocked on it returns false.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	mb := e.mailbox
	if mb != nil {
		e.router.Disconnect(mb)
		mb.Close()

		drained := 0
		for env, ok := mb.TryPop(); ok; env, ok = mb.TryPop() {
			e.router.Forward(env)
			drained++
		}
		if drained > 0 {
			e.logger.Debug("endpoint drained on close", "addr", int32(e.addr), "envelopes", drained)
		}
	}

	e.mailbox = nil
	e.addr = Invalid
}

// dispatch hands the command to the handler, recovering from panics so the
// envelope can still be relayed.
func (e *Endpoint) dispatch(env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.RLock()
			logger := e.logger
			e.mu.RUnlock()
			logger.Error("bus handler panic recovered",
				"envelope", env.ID, "kind", kindOf(env.Command), "panic", r)
		}
	}()
	if env.Command != nil {
		env.Command.Accept(env.From, env.To, e.handler)
	}
}

// sleep blocks for wait or until ctx is cancelled. A negative wait blocks
// until cancellation.
func sleep(ctx context.Context, wait time.Duration) {
	switch {
	case wait == 0:
		return
	case wait < 0:
		<-ctx.Done()
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
