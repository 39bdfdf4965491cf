package bus

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry and endpoints.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// group is a named or anonymous set of endpoint addresses.
// Members are stored most-recent-first; delivery consumes from the tail.
type group struct {
	addr    Address
	name    string
	members []Address
}

// Registry maps addresses to mailboxes and groups to members.
//
// Every operation, including the resolve-and-enqueue step of Forward,
// serialises on a single mutex. The mutex is never held while waiting on a
// mailbox.
//
// Addresses are allocated monotonically and never reused for the lifetime
// of the registry.
//
// All public methods are thread-safe.
type Registry struct {
	mu sync.Mutex

	byMailbox map[*Mailbox]Address
	byAddr    map[Address]*Mailbox

	groups    map[Address]*group
	byName    map[string]Address
	addrLast  Address // last endpoint address handed out (<= 0)
	groupLast Address // last group address handed out (>= 0)

	metrics Metrics
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byMailbox: make(map[*Mailbox]Address),
		byAddr:    make(map[Address]*Mailbox),
		groups:    make(map[Address]*group),
		byName:    make(map[string]Address),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Logger returns the registry's logger so endpoints can share it.
func (r *Registry) Logger() Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logger
}

// Connect registers a mailbox and returns its endpoint address.
//
// Connecting the same mailbox twice returns the address it already holds.
// Otherwise a fresh negative address is allocated.
//
// Returns ErrNoMailbox for a nil mailbox and ErrAddressSpaceExhausted once
// every negative address has been handed out.
func (r *Registry) Connect(mb *Mailbox) (Address, error) {
	if mb == nil {
		return Invalid, ErrNoMailbox
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if addr, ok := r.byMailbox[mb]; ok {
		return addr, nil
	}

	if r.addrLast == math.MinInt32 {
		return Invalid, fmt.Errorf("%w: endpoint addresses", ErrAddressSpaceExhausted)
	}
	r.addrLast--
	addr := r.addrLast

	r.byMailbox[mb] = addr
	r.byAddr[addr] = mb
	r.metrics.recordConnect()
	r.logger.Debug("endpoint connected", "addr", int32(addr))

	return addr, nil
}

// Disconnect unregisters a mailbox. Unknown mailboxes are ignored.
//
// Group memberships are left in place; hops skip addresses that no longer
// resolve.
func (r *Registry) Disconnect(mb *Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr, ok := r.byMailbox[mb]
	if !ok {
		return
	}
	delete(r.byMailbox, mb)
	delete(r.byAddr, addr)
	r.metrics.recordDisconnect()
	r.logger.Debug("endpoint disconnected", "addr", int32(addr))
}

// Join adds member to a group, creating the group if needed.
// Joining a group twice is a no-op.
//
// Returns ErrInvalidGroup if group is not a group address and
// ErrNotConnected if member is not a connected endpoint.
func (r *Registry) Join(grp, member Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkJoinLocked(grp, member); err != nil {
		return err
	}
	r.joinLocked(grp, member)
	return nil
}

// JoinName adds member to the named group and returns the group's address.
// The group address is allocated on first use of the name.
func (r *Registry) JoinName(name string, member Address) (Address, error) {
	if name == "" {
		return Invalid, ErrInvalidGroupName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byAddr[member]; !ok || !member.IsEndpoint() {
		return Invalid, fmt.Errorf("%w: %d", ErrNotConnected, member)
	}

	grp, err := r.groupAddressLocked(name)
	if err != nil {
		return Invalid, err
	}
	r.joinLocked(grp, member)
	return grp, nil
}

// Leave removes member from a group. Unknown groups or members are ignored.
func (r *Registry) Leave(grp, member Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(grp, member)
}

// LeaveName removes member from the named group.
// Unknown names are ignored and do not allocate an address.
func (r *Registry) LeaveName(name string, member Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if grp, ok := r.byName[name]; ok {
		r.leaveLocked(grp, member)
	}
}

// Destination expands an address into its delivery list.
//
// An endpoint address expands to itself whether or not it is connected. A
// group address expands to a copy of its member list in storage order, most
// recent joiner first. Zero and unknown groups expand to an empty list.
func (r *Registry) Destination(addr Address) []Address {
	if addr.IsEndpoint() {
		return []Address{addr}
	}
	if !addr.IsGroup() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[addr]
	if !ok {
		return nil
	}
	return slices.Clone(g.members)
}

// ResolveMailbox returns the mailbox connected at addr, or nil.
// Only endpoint addresses resolve.
func (r *Registry) ResolveMailbox(addr Address) *Mailbox {
	if !addr.IsEndpoint() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byAddr[addr]
}

// ResolveGroupAddress returns the address allocated for name, or Invalid.
func (r *Registry) ResolveGroupAddress(name string) Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[name]
}

// Forward performs one hop for env.
//
// Destinations are popped from the tail of the envelope's remaining list
// until one resolves to a connected mailbox. The envelope is then offered to
// that mailbox without blocking. Unresolvable destinations are consumed and
// never retried.
//
// Returns true if the envelope now sits in a mailbox. On false the envelope
// is spent and the caller should discard it; nothing is reported to the
// original sender.
func (r *Registry) Forward(env *Envelope) bool {
	if env == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	first := env.hops == 0
	if first {
		r.metrics.recordSend()
	}
	env.hops++

	if env.Exhausted() {
		// An envelope spent by its last delivery is not a drop.
		if first {
			r.metrics.recordDroppedNoRoute()
		}
		return false
	}
	r.metrics.recordHop()

	var (
		dest *Mailbox
		addr Address
	)
	for dest == nil && !env.Exhausted() {
		addr = env.popBack()
		dest = r.byAddr[addr]
	}

	if dest == nil {
		r.metrics.recordDroppedNoRoute()
		r.logger.Debug("envelope dropped: no route",
			"envelope", env.ID, "from", int32(env.From), "to", int32(env.To), "kind", kindOf(env.Command))
		return false
	}

	if !dest.TryPush(env) {
		r.metrics.recordDroppedFull()
		r.logger.Debug("envelope dropped: mailbox full",
			"envelope", env.ID, "dest", int32(addr), "kind", kindOf(env.Command))
		return false
	}

	r.metrics.recordDelivered()
	return true
}

// Metrics returns a snapshot of the delivery counters.
func (r *Registry) Metrics() MetricsSnapshot {
	return r.metrics.Snapshot()
}

// GroupInfo describes one group in a Snapshot.
type GroupInfo struct {
	Address Address   `json:"address"`
	Name    string    `json:"name,omitempty"`
	Members []Address `json:"members"`
}

// Snapshot is a copy of the registry tables for diagnostics.
type Snapshot struct {
	Endpoints []Address   `json:"endpoints"`
	Groups    []GroupInfo `json:"groups"`
}

// Snapshot copies the registry tables. Endpoints are sorted by allocation
// order and groups by address.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Endpoints: make([]Address, 0, len(r.byAddr)),
		Groups:    make([]GroupInfo, 0, len(r.groups)),
	}
	for addr := range r.byAddr {
		s.Endpoints = append(s.Endpoints, addr)
	}
	// Allocation order is decreasing.
	slices.Sort(s.Endpoints)
	slices.Reverse(s.Endpoints)

	for _, g := range r.groups {
		s.Groups = append(s.Groups, GroupInfo{
			Address: g.addr,
			Name:    g.name,
			Members: slices.Clone(g.members),
		})
	}
	slices.SortFunc(s.Groups, func(a, b GroupInfo) int {
		return cmp.Compare(a.Address, b.Address)
	})

	return s
}

func (r *Registry) checkJoinLocked(grp, member Address) error {
	if !grp.IsGroup() {
		return fmt.Errorf("%w: %d", ErrInvalidGroup, grp)
	}
	if _, ok := r.byAddr[member]; !ok || !member.IsEndpoint() {
		return fmt.Errorf("%w: %d", ErrNotConnected, member)
	}
	return nil
}

func (r *Registry) joinLocked(grp, member Address) {
	g, ok := r.groups[grp]
	if !ok {
		g = &group{addr: grp}
		r.groups[grp] = g
	}
	if slices.Contains(g.members, member) {
		return
	}
	g.members = slices.Insert(g.members, 0, member)
	r.logger.Debug("endpoint joined group", "group", int32(grp), "name", g.name, "member", int32(member))
}

func (r *Registry) leaveLocked(grp, member Address) {
	g, ok := r.groups[grp]
	if !ok {
		return
	}
	if i := slices.Index(g.members, member); i >= 0 {
		g.members = slices.Delete(g.members, i, i+1)
		r.logger.Debug("endpoint left group", "group", int32(grp), "name", g.name, "member", int32(member))
	}
}

// groupAddressLocked resolves name, allocating a fresh address on first use.
// Addresses already taken by anonymous groups are skipped.
func (r *Registry) groupAddressLocked(name string) (Address, error) {
	if addr, ok := r.byName[name]; ok {
		return addr, nil
	}

	for {
		if r.groupLast == math.MaxInt32 {
			return Invalid, fmt.Errorf("%w: group addresses", ErrAddressSpaceExhausted)
		}
		r.groupLast++
		if _, taken := r.groups[r.groupLast]; !taken {
			break
		}
	}

	addr := r.groupLast
	r.byName[name] = addr
	r.groups[addr] = &group{addr: addr, name: name}
	r.logger.Debug("group allocated", "group", int32(addr), "name", name)
	return addr, nil
}

func kindOf(cmd Command) string {
	if cmd == nil {
		return "nil"
	}
	return cmd.Kind()
}
