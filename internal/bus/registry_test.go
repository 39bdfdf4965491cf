package bus

import (
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
)

// connectN connects n fresh mailboxes and returns them with their addresses.
func connectN(t *testing.T, r *Registry, n int) ([]*Mailbox, []Address) {
	t.Helper()
	mbs := make([]*Mailbox, n)
	addrs := make([]Address, n)
	for i := range n {
		mbs[i] = NewMailbox()
		addr, err := r.Connect(mbs[i])
		if err != nil {
			t.Fatalf("Connect() #%d error = %v", i, err)
		}
		addrs[i] = addr
	}
	return mbs, addrs
}

func TestRegistry_ConnectIdempotent(t *testing.T) {
	r := NewRegistry()
	mb := NewMailbox()

	first, err := r.Connect(mb)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	second, err := r.Connect(mb)
	if err != nil {
		t.Fatalf("Connect() second error = %v", err)
	}
	if first != second {
		t.Errorf("Connect() twice = %d, %d; want same address", first, second)
	}
	if !first.IsEndpoint() {
		t.Errorf("Connect() = %d, want negative address", first)
	}
}

func TestRegistry_ConnectNilMailbox(t *testing.T) {
	r := NewRegistry()
	addr, err := r.Connect(nil)
	if !errors.Is(err, ErrNoMailbox) {
		t.Errorf("Connect(nil) error = %v, want ErrNoMailbox", err)
	}
	if addr != Invalid {
		t.Errorf("Connect(nil) = %d, want Invalid", addr)
	}
}

func TestRegistry_AddressesMonotonic(t *testing.T) {
	r := NewRegistry()
	mbs, addrs := connectN(t, r, 3)

	want := []Address{-1, -2, -3}
	if !slices.Equal(addrs, want) {
		t.Fatalf("addresses = %v, want %v", addrs, want)
	}

	// Addresses are never reused after disconnect.
	r.Disconnect(mbs[1])
	addr, err := r.Connect(NewMailbox())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if addr != -4 {
		t.Errorf("Connect() after disconnect = %d, want -4", addr)
	}

	// Reconnecting a disconnected mailbox gets a fresh address.
	addr, err = r.Connect(mbs[1])
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if addr != -5 {
		t.Errorf("reconnect = %d, want -5", addr)
	}
}

func TestRegistry_ConnectExhausted(t *testing.T) {
	r := NewRegistry()
	r.addrLast = math.MinInt32

	_, err := r.Connect(NewMailbox())
	if !errors.Is(err, ErrAddressSpaceExhausted) {
		t.Errorf("Connect() error = %v, want ErrAddressSpaceExhausted", err)
	}
}

func TestRegistry_ResolveMailbox(t *testing.T) {
	r := NewRegistry()
	mbs, addrs := connectN(t, r, 2)

	tests := []struct {
		name string
		addr Address
		want *Mailbox
	}{
		{"first endpoint", addrs[0], mbs[0]},
		{"second endpoint", addrs[1], mbs[1]},
		{"unknown endpoint", -99, nil},
		{"zero", Invalid, nil},
		{"group address", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ResolveMailbox(tt.addr); got != tt.want {
				t.Errorf("ResolveMailbox(%d) = %p, want %p", tt.addr, got, tt.want)
			}
		})
	}
}

func TestRegistry_DisconnectUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 1)

	r.Disconnect(NewMailbox())
	r.Disconnect(nil)

	if r.ResolveMailbox(addrs[0]) == nil {
		t.Error("Disconnect(unknown) removed an unrelated endpoint")
	}
}

func TestRegistry_Destination(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 2)
	a, b := addrs[0], addrs[1]

	grp, err := r.JoinName("sensors", a)
	if err != nil {
		t.Fatalf("JoinName() error = %v", err)
	}
	if _, err := r.JoinName("sensors", b); err != nil {
		t.Fatalf("JoinName() error = %v", err)
	}

	tests := []struct {
		name string
		addr Address
		want []Address
	}{
		{"endpoint resolves to itself", a, []Address{a}},
		{"unconnected endpoint resolves to itself", -42, []Address{-42}},
		{"group in storage order", grp, []Address{b, a}},
		{"unknown group", grp + 10, nil},
		{"zero", Invalid, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Destination(tt.addr)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Destination(%d) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestRegistry_DestinationIsSnapshot(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 3)

	grp, _ := r.JoinName("g", addrs[0])
	got := r.Destination(grp)

	got[0] = 12345
	if _, err := r.JoinName("g", addrs[1]); err != nil {
		t.Fatalf("JoinName() error = %v", err)
	}

	if len(got) != 1 {
		t.Errorf("snapshot length changed to %d after join", len(got))
	}
	want := []Address{addrs[1], addrs[0]}
	if now := r.Destination(grp); !slices.Equal(now, want) {
		t.Errorf("Destination() = %v, want %v (mutating a snapshot must not leak)", now, want)
	}
}

func TestRegistry_JoinIdempotent(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 2)

	for range 3 {
		if err := r.Join(7, addrs[0]); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
	}
	if err := r.Join(7, addrs[1]); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	want := []Address{addrs[1], addrs[0]}
	if got := r.Destination(7); !slices.Equal(got, want) {
		t.Errorf("Destination(7) = %v, want %v", got, want)
	}
}

func TestRegistry_JoinErrors(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 1)

	tests := []struct {
		name    string
		group   Address
		member  Address
		wantErr error
	}{
		{"zero group", Invalid, addrs[0], ErrInvalidGroup},
		{"endpoint as group", -5, addrs[0], ErrInvalidGroup},
		{"unknown member", 1, -77, ErrNotConnected},
		{"group as member", 1, 2, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Join(tt.group, tt.member); !errors.Is(err, tt.wantErr) {
				t.Errorf("Join(%d, %d) error = %v, want %v", tt.group, tt.member, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_JoinNameErrors(t *testing.T) {
	r := NewRegistry()

	if _, err := r.JoinName("", -1); !errors.Is(err, ErrInvalidGroupName) {
		t.Errorf("JoinName(\"\") error = %v, want ErrInvalidGroupName", err)
	}
	if _, err := r.JoinName("sensors", -1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("JoinName() unconnected error = %v, want ErrNotConnected", err)
	}
	// A rejected join does not allocate the name.
	if got := r.ResolveGroupAddress("sensors"); got != Invalid {
		t.Errorf("ResolveGroupAddress() = %d after failed join, want Invalid", got)
	}
}

func TestRegistry_GroupNameAllocation(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 1)
	m := addrs[0]

	sensors, _ := r.JoinName("sensors", m)
	system, _ := r.JoinName("system", m)
	again, _ := r.JoinName("sensors", m)

	if sensors != 1 || system != 2 {
		t.Errorf("allocated %d, %d; want 1, 2", sensors, system)
	}
	if again != sensors {
		t.Errorf("JoinName(sensors) again = %d, want %d", again, sensors)
	}
	if got := r.ResolveGroupAddress("system"); got != system {
		t.Errorf("ResolveGroupAddress(system) = %d, want %d", got, system)
	}
	if got := r.ResolveGroupAddress("unknown"); got != Invalid {
		t.Errorf("ResolveGroupAddress(unknown) = %d, want Invalid", got)
	}
}

func TestRegistry_GroupNameSkipsAnonymousGroups(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 1)

	if err := r.Join(1, addrs[0]); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	grp, err := r.JoinName("sensors", addrs[0])
	if err != nil {
		t.Fatalf("JoinName() error = %v", err)
	}
	if grp != 2 {
		t.Errorf("JoinName() = %d, want 2 (1 is taken)", grp)
	}
}

func TestRegistry_Leave(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 3)
	a, b, c := addrs[0], addrs[1], addrs[2]

	grp, _ := r.JoinName("g", a)
	_, _ = r.JoinName("g", b)
	_, _ = r.JoinName("g", c)

	r.Leave(grp, b)
	if got, want := r.Destination(grp), []Address{c, a}; !slices.Equal(got, want) {
		t.Errorf("after Leave(b) = %v, want %v", got, want)
	}

	// Unknown group, unknown member and unknown name are no-ops.
	r.Leave(grp, b)
	r.Leave(99, a)
	r.LeaveName("nope", a)
	if got := r.ResolveGroupAddress("nope"); got != Invalid {
		t.Errorf("LeaveName(unknown) allocated %d", got)
	}

	r.LeaveName("g", a)
	if got, want := r.Destination(grp), []Address{c}; !slices.Equal(got, want) {
		t.Errorf("after LeaveName(a) = %v, want %v", got, want)
	}

	// Empty groups keep their address.
	r.Leave(grp, c)
	if got := r.ResolveGroupAddress("g"); got != grp {
		t.Errorf("ResolveGroupAddress(g) = %d after emptying, want %d", got, grp)
	}
}

func TestRegistry_ForwardSkipsDisconnected(t *testing.T) {
	r := NewRegistry()
	mbs, addrs := connectN(t, r, 3)
	a, b, c := addrs[0], addrs[1], addrs[2]

	// Route [c, b, a]: the tail (a) is disconnected, so b must receive.
	r.Disconnect(mbs[0])
	env := NewEnvelope(c, 1, Discovery{DeviceID: 1}, []Address{c, b, a})

	if !r.Forward(env) {
		t.Fatal("Forward() = false, want true")
	}
	if mbs[1].Len() != 1 {
		t.Errorf("b mailbox len = %d, want 1", mbs[1].Len())
	}
	if got, want := env.Remaining(), []Address{c}; !slices.Equal(got, want) {
		t.Errorf("Remaining() = %v, want %v", got, want)
	}
}

func TestRegistry_ForwardNoRoute(t *testing.T) {
	r := NewRegistry()
	env := NewEnvelope(-1, 1, Discovery{}, []Address{-8, -9})

	if r.Forward(env) {
		t.Fatal("Forward() = true with no connected destinations")
	}
	if !env.Exhausted() {
		t.Errorf("Remaining() = %v, want exhausted", env.Remaining())
	}
	m := r.Metrics()
	if m.DroppedNoRoute != 1 {
		t.Errorf("DroppedNoRoute = %d, want 1", m.DroppedNoRoute)
	}
}

func TestRegistry_HopsCountResolveSteps(t *testing.T) {
	r := NewRegistry()
	mbs, addrs := connectN(t, r, 2)

	env := NewEnvelope(addrs[0], addrs[1], Discovery{DeviceID: 1}, []Address{addrs[1]})
	if !r.Forward(env) {
		t.Fatal("Forward() = false, want true")
	}
	got, ok := mbs[1].TryPop()
	if !ok || got != env {
		t.Fatal("destination mailbox did not hold the envelope")
	}

	// The receiver relays the spent envelope; that call resolves nothing.
	if r.Forward(env) {
		t.Error("Forward() on exhausted envelope = true")
	}

	m := r.Metrics()
	if m.Hops != 1 {
		t.Errorf("Hops = %d, want 1", m.Hops)
	}
	if m.Sends != 1 || m.Delivered != 1 {
		t.Errorf("Sends = %d, Delivered = %d, want 1 and 1", m.Sends, m.Delivered)
	}
	if m.DroppedNoRoute != 0 {
		t.Errorf("DroppedNoRoute = %d, want 0", m.DroppedNoRoute)
	}
}

func TestRegistry_ForwardFullMailbox(t *testing.T) {
	r := NewRegistry()
	mbs, addrs := connectN(t, r, 1)

	for i := range MailboxCapacity {
		env := NewEnvelope(addrs[0], addrs[0], Discovery{DeviceID: uint32(i)}, []Address{addrs[0]})
		if !r.Forward(env) {
			t.Fatalf("Forward() #%d = false, want true", i)
		}
	}

	overflow := NewEnvelope(addrs[0], addrs[0], Discovery{DeviceID: 99}, []Address{addrs[0]})
	if r.Forward(overflow) {
		t.Error("Forward() into full mailbox = true, want false")
	}
	if mbs[0].Len() != MailboxCapacity {
		t.Errorf("mailbox len = %d, want %d", mbs[0].Len(), MailboxCapacity)
	}

	m := r.Metrics()
	if m.DroppedFull != 1 {
		t.Errorf("DroppedFull = %d, want 1", m.DroppedFull)
	}
	if m.Delivered != MailboxCapacity {
		t.Errorf("Delivered = %d, want %d", m.Delivered, MailboxCapacity)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	_, addrs := connectN(t, r, 2)
	sensors, _ := r.JoinName("sensors", addrs[0])
	_, _ = r.JoinName("sensors", addrs[1])
	system, _ := r.JoinName("system", addrs[1])

	s := r.Snapshot()

	if want := []Address{-1, -2}; !slices.Equal(s.Endpoints, want) {
		t.Errorf("Endpoints = %v, want %v", s.Endpoints, want)
	}
	if len(s.Groups) != 2 {
		t.Fatalf("len(Groups) = %d, want 2", len(s.Groups))
	}
	if s.Groups[0].Address != sensors || s.Groups[0].Name != "sensors" {
		t.Errorf("Groups[0] = %+v, want sensors", s.Groups[0])
	}
	if s.Groups[1].Address != system || !slices.Equal(s.Groups[1].Members, []Address{addrs[1]}) {
		t.Errorf("Groups[1] = %+v, want system with one member", s.Groups[1])
	}
}

func TestRegistry_ConcurrentConnect(t *testing.T) {
	r := NewRegistry()
	const n = 64

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[Address]bool, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, err := r.Connect(NewMailbox())
			if err != nil {
				t.Errorf("Connect() error = %v", err)
				return
			}
			mu.Lock()
			seen[addr] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("distinct addresses = %d, want %d", len(seen), n)
	}
}
