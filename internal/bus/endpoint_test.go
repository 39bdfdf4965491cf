package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// received is one command observed by a recordingVisitor.
type received struct {
	from, to Address
	cmd      Command
}

// recordingVisitor records every command it sees.
type recordingVisitor struct {
	mu   sync.Mutex
	seen []received
}

func (v *recordingVisitor) record(from, to Address, cmd Command) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen = append(v.seen, received{from: from, to: to, cmd: cmd})
}

func (v *recordingVisitor) VisitTemperature(from, to Address, cmd Temperature) {
	v.record(from, to, cmd)
}
func (v *recordingVisitor) VisitDiscovery(from, to Address, cmd Discovery) { v.record(from, to, cmd) }
func (v *recordingVisitor) VisitLinkState(from, to Address, cmd LinkState) { v.record(from, to, cmd) }
func (v *recordingVisitor) VisitScanRequest(from, to Address, cmd ScanRequest) {
	v.record(from, to, cmd)
}

func (v *recordingVisitor) all() []received {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]received, len(v.seen))
	copy(out, v.seen)
	return out
}

// newTestEndpoint creates and initialises an endpoint with a recording visitor.
func newTestEndpoint(t *testing.T, r *Registry) (*Endpoint, *recordingVisitor) {
	t.Helper()
	v := &recordingVisitor{}
	ep := NewEndpoint(r, v)
	if !ep.Initialize() {
		t.Fatal("Initialize() = false, want true")
	}
	t.Cleanup(ep.Close)
	return ep, v
}

func TestEndpoint_InitializeIdempotent(t *testing.T) {
	r := NewRegistry()
	ep := NewEndpoint(r, nil)

	if ep.IsConnected() {
		t.Error("IsConnected() before Initialize = true")
	}
	if !ep.Initialize() {
		t.Fatal("Initialize() = false")
	}
	addr := ep.Address()
	if !ep.Initialize() {
		t.Fatal("second Initialize() = false")
	}
	if ep.Address() != addr {
		t.Errorf("Address() changed from %d to %d", addr, ep.Address())
	}
	if m := r.Metrics(); m.Connects != 1 {
		t.Errorf("Connects = %d, want 1", m.Connects)
	}
}

func TestEndpoint_CloseIsTerminal(t *testing.T) {
	r := NewRegistry()
	ep := NewEndpoint(r, nil)
	ep.Initialize()
	addr := ep.Address()

	ep.Close()
	ep.Close()

	if ep.IsConnected() {
		t.Error("IsConnected() after Close = true")
	}
	if r.ResolveMailbox(addr) != nil {
		t.Error("mailbox still resolvable after Close")
	}
	if ep.Initialize() {
		t.Error("Initialize() after Close = true, want false")
	}
	if ep.TryReceive(context.Background(), 0) {
		t.Error("TryReceive() after Close = true")
	}
}

func TestEndpoint_SendErrors(t *testing.T) {
	r := NewRegistry()
	ep, _ := newTestEndpoint(t, r)
	unconnected := NewEndpoint(r, nil)

	tests := []struct {
		name    string
		send    func() error
		wantErr error
	}{
		{"zero target", func() error { return ep.Send(Invalid, Discovery{}) }, ErrInvalidAddress},
		{"nil command", func() error { return ep.Send(-1, nil) }, ErrNilCommand},
		{"not connected", func() error { return unconnected.Send(-1, Discovery{}) }, ErrNotConnected},
		{"empty group name", func() error { return ep.SendName("", Discovery{}) }, ErrInvalidGroupName},
		{"unknown group name", func() error { return ep.SendName("nobody", Discovery{}) }, ErrUnknownGroup},
		{"unresolvable endpoint is silent", func() error { return ep.Send(-99, Discovery{}) }, nil},
		{"empty group is silent", func() error { return ep.Send(50, Discovery{}) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.send()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEndpoint_SendToSelf(t *testing.T) {
	r := NewRegistry()
	ep, v := newTestEndpoint(t, r)

	if err := ep.Send(ep.Address(), ScanRequest{Reason: "test"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !ep.TryReceive(context.Background(), 0) {
		t.Fatal("TryReceive() = false, want true")
	}

	got := v.all()
	if len(got) != 1 {
		t.Fatalf("received %d commands, want 1", len(got))
	}
	if got[0].from != ep.Address() || got[0].to != ep.Address() {
		t.Errorf("from/to = %d/%d, want %d", got[0].from, got[0].to, ep.Address())
	}
	if sr, ok := got[0].cmd.(ScanRequest); !ok || sr.Reason != "test" {
		t.Errorf("cmd = %#v, want ScanRequest{test}", got[0].cmd)
	}
}

func TestEndpoint_TryReceiveWaits(t *testing.T) {
	r := NewRegistry()
	ep, _ := newTestEndpoint(t, r)

	const wait = 30 * time.Millisecond
	start := time.Now()
	if ep.TryReceive(context.Background(), wait) {
		t.Fatal("TryReceive() on empty mailbox = true")
	}
	if elapsed := time.Since(start); elapsed < wait {
		t.Errorf("TryReceive() returned after %v, want at least %v", elapsed, wait)
	}
}

func TestEndpoint_TryReceiveCancelled(t *testing.T) {
	r := NewRegistry()
	ep, _ := newTestEndpoint(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- ep.TryReceive(ctx, WaitForever) }()

	cancel()
	select {
	case got := <-done:
		if got {
			t.Error("TryReceive() after cancel = true")
		}
	case <-time.After(time.Second):
		t.Fatal("TryReceive(WaitForever) did not return after cancel")
	}
}

func TestEndpoint_TryReceiveWaitsWithoutMailbox(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, ep *Endpoint)
	}{
		{"uninitialised", func(*testing.T, *Endpoint) {}},
		{"closed", func(t *testing.T, ep *Endpoint) {
			if !ep.Initialize() {
				t.Fatal("Initialize() = false, want true")
			}
			ep.Close()
		}},
	}

	const wait = 50 * time.Millisecond
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := NewEndpoint(NewRegistry(), nil)
			tt.setup(t, ep)

			start := time.Now()
			if ep.TryReceive(context.Background(), wait) {
				t.Fatal("TryReceive() without mailbox = true")
			}
			if elapsed := time.Since(start); elapsed < wait {
				t.Errorf("TryReceive() returned after %v, want at least %v", elapsed, wait)
			}
		})
	}
}

func TestEndpoint_TryReceiveWithoutMailboxHonoursCancel(t *testing.T) {
	ep := NewEndpoint(NewRegistry(), nil)

	if ep.TryReceive(context.Background(), 0) {
		t.Error("TryReceive(0) without mailbox = true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- ep.TryReceive(ctx, WaitForever) }()

	select {
	case <-done:
		t.Fatal("TryReceive(WaitForever) without mailbox returned before cancel")
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	select {
	case got := <-done:
		if got {
			t.Error("TryReceive() after cancel = true")
		}
	case <-time.After(time.Second):
		t.Fatal("TryReceive(WaitForever) did not return after cancel")
	}
}

func TestEndpoint_CloseWakesPendingReceive(t *testing.T) {
	ep := NewEndpoint(NewRegistry(), nil)
	if !ep.Initialize() {
		t.Fatal("Initialize() = false, want true")
	}

	done := make(chan bool, 1)
	go func() { done <- ep.TryReceive(context.Background(), WaitForever) }()

	time.Sleep(10 * time.Millisecond)
	ep.Close()

	select {
	case got := <-done:
		if got {
			t.Error("TryReceive() after Close = true")
		}
	case <-time.After(time.Second):
		t.Fatal("TryReceive(WaitForever) still blocked after Close")
	}
}

func TestEndpoint_TryReceiveBlocksUntilArrival(t *testing.T) {
	r := NewRegistry()
	rx, v := newTestEndpoint(t, r)
	tx, _ := newTestEndpoint(t, r)

	done := make(chan bool, 1)
	go func() { done <- rx.TryReceive(context.Background(), WaitForever) }()

	time.Sleep(10 * time.Millisecond)
	if err := tx.Send(rx.Address(), Discovery{DeviceID: 7}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-done:
		if !got {
			t.Error("TryReceive() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("TryReceive(WaitForever) did not return after send")
	}
	if n := len(v.all()); n != 1 {
		t.Errorf("received %d, want 1", n)
	}
}

func TestEndpoint_GroupScenario(t *testing.T) {
	r := NewRegistry()
	a, va := newTestEndpoint(t, r)
	b, vb := newTestEndpoint(t, r)
	c, vc := newTestEndpoint(t, r)

	sensors, err := a.JoinName("sensors")
	if err != nil {
		t.Fatalf("a.JoinName() error = %v", err)
	}
	if _, err := b.JoinName("sensors"); err != nil {
		t.Fatalf("b.JoinName() error = %v", err)
	}

	cmd := Temperature{SensorID: 0x28ff4d79a2160301, Celsius: 21.5}
	if err := a.SendName("sensors", cmd); err != nil {
		t.Fatalf("SendName() error = %v", err)
	}

	ctx := context.Background()

	// A joined first, so A holds the envelope; B has nothing yet.
	if b.TryReceive(ctx, 0) {
		t.Fatal("b received before a relayed")
	}
	if !a.TryReceive(ctx, 0) {
		t.Fatal("a.TryReceive() = false")
	}
	if !b.TryReceive(ctx, 0) {
		t.Fatal("b.TryReceive() = false after a relayed")
	}
	if c.TryReceive(ctx, 0) {
		t.Error("c received a command for a group it never joined")
	}
	if a.TryReceive(ctx, 0) || b.TryReceive(ctx, 0) {
		t.Error("command delivered more than once")
	}

	for name, v := range map[string]*recordingVisitor{"a": va, "b": vb} {
		got := v.all()
		if len(got) != 1 {
			t.Errorf("%s received %d, want 1", name, len(got))
			continue
		}
		if got[0].from != a.Address() || got[0].to != sensors {
			t.Errorf("%s from/to = %d/%d, want %d/%d", name, got[0].from, got[0].to, a.Address(), sensors)
		}
		if got[0].cmd != Command(cmd) {
			t.Errorf("%s cmd = %#v, want %#v", name, got[0].cmd, cmd)
		}
	}
	if n := len(vc.all()); n != 0 {
		t.Errorf("c received %d, want 0", n)
	}
}

func TestEndpoint_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestEndpoint(t, r)
	b, vb := newTestEndpoint(t, r)
	late, vlate := newTestEndpoint(t, r)

	_, _ = a.JoinName("g")
	_, _ = b.JoinName("g")

	if err := a.SendName("g", Discovery{DeviceID: 1}); err != nil {
		t.Fatalf("SendName() error = %v", err)
	}
	// Joins after the send must not change the envelope's route.
	_, _ = late.JoinName("g")

	ctx := context.Background()
	a.TryReceive(ctx, 0)
	b.TryReceive(ctx, 0)
	late.TryReceive(ctx, 0)

	if n := len(vb.all()); n != 1 {
		t.Errorf("b received %d, want 1", n)
	}
	if n := len(vlate.all()); n != 0 {
		t.Errorf("late joiner received %d, want 0", n)
	}
}

func TestEndpoint_SkipOnDisconnect(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestEndpoint(t, r)
	b, vb := newTestEndpoint(t, r)
	c, vc := newTestEndpoint(t, r)

	_, _ = a.JoinName("g")
	_, _ = b.JoinName("g")
	_, _ = c.JoinName("g")

	tx, _ := newTestEndpoint(t, r)
	if err := tx.SendName("g", Discovery{}); err != nil {
		t.Fatalf("SendName() error = %v", err)
	}

	// a holds the envelope; b disconnects before a relays it.
	b.Close()
	ctx := context.Background()
	if !a.TryReceive(ctx, 0) {
		t.Fatal("a.TryReceive() = false")
	}
	if !c.TryReceive(ctx, 0) {
		t.Fatal("c.TryReceive() = false, want relay to skip closed b")
	}
	if n := len(vb.all()); n != 0 {
		t.Errorf("closed b received %d", n)
	}
	if n := len(vc.all()); n != 1 {
		t.Errorf("c received %d, want 1", n)
	}
}

func TestEndpoint_BoundedMailbox(t *testing.T) {
	r := NewRegistry()
	rx, v := newTestEndpoint(t, r)
	tx, _ := newTestEndpoint(t, r)

	for i := range MailboxCapacity + 1 {
		if err := tx.Send(rx.Address(), Discovery{DeviceID: uint32(i)}); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}

	ctx := context.Background()
	for rx.TryReceive(ctx, 0) {
	}

	got := v.all()
	if len(got) != MailboxCapacity {
		t.Fatalf("received %d, want %d", len(got), MailboxCapacity)
	}
	// FIFO per sender, and the overflow (last) send is the one lost.
	for i, rcv := range got {
		if d := rcv.cmd.(Discovery); d.DeviceID != uint32(i) {
			t.Errorf("received[%d].DeviceID = %d, want %d", i, d.DeviceID, i)
		}
	}
	if m := r.Metrics(); m.DroppedFull != 1 {
		t.Errorf("DroppedFull = %d, want 1", m.DroppedFull)
	}
}

func TestEndpoint_CloseDrainsAndForwards(t *testing.T) {
	r := NewRegistry()
	a, va := newTestEndpoint(t, r)
	b, vb := newTestEndpoint(t, r)
	tx, _ := newTestEndpoint(t, r)

	_, _ = a.JoinName("g")
	_, _ = b.JoinName("g")

	const k = 5
	for i := range k {
		if err := tx.SendName("g", Discovery{DeviceID: uint32(i)}); err != nil {
			t.Fatalf("SendName() error = %v", err)
		}
	}

	// a never handles them; closing relays all k to b.
	hopsBefore := r.Metrics().Hops
	a.Close()
	if hops := r.Metrics().Hops - hopsBefore; hops != k {
		t.Errorf("hops during Close = %d, want %d", hops, k)
	}

	ctx := context.Background()
	for b.TryReceive(ctx, 0) {
	}
	if n := len(vb.all()); n != k {
		t.Errorf("b received %d after a closed, want %d", n, k)
	}
	if n := len(va.all()); n != 0 {
		t.Errorf("a handled %d while draining, want 0", n)
	}
}

func TestEndpoint_JoinRequiresConnection(t *testing.T) {
	ep := NewEndpoint(NewRegistry(), nil)

	if err := ep.Join(1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Join() error = %v, want ErrNotConnected", err)
	}
	if _, err := ep.JoinName("g"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("JoinName() error = %v, want ErrNotConnected", err)
	}
	// Leave on an unconnected endpoint is a no-op.
	ep.Leave(1)
	ep.LeaveName("g")
}

// panicVisitor panics on every temperature.
type panicVisitor struct{ NopVisitor }

func (panicVisitor) VisitTemperature(Address, Address, Temperature) { panic("boom") }

func TestEndpoint_HandlerPanicStillRelays(t *testing.T) {
	r := NewRegistry()
	a := NewEndpoint(r, panicVisitor{})
	a.Initialize()
	defer a.Close()
	b, vb := newTestEndpoint(t, r)

	_, _ = a.JoinName("g")
	_, _ = b.JoinName("g")

	if err := a.SendName("g", Temperature{Celsius: 1}); err != nil {
		t.Fatalf("SendName() error = %v", err)
	}
	ctx := context.Background()
	if !a.TryReceive(ctx, 0) {
		t.Fatal("a.TryReceive() = false")
	}
	if !b.TryReceive(ctx, 0) {
		t.Fatal("b.TryReceive() = false after a's handler panicked")
	}
	if n := len(vb.all()); n != 1 {
		t.Errorf("b received %d, want 1", n)
	}
}

func TestEndpoint_Serve(t *testing.T) {
	r := NewRegistry()
	rx, v := newTestEndpoint(t, r)
	tx, _ := newTestEndpoint(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rx.Serve(ctx, 5*time.Millisecond)
		close(done)
	}()

	for i := range 3 {
		_ = tx.Send(rx.Address(), Discovery{DeviceID: uint32(i)})
	}

	deadline := time.Now().Add(time.Second)
	for len(v.all()) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if n := len(v.all()); n != 3 {
		t.Errorf("received %d, want 3", n)
	}
}
