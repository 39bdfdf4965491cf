package bus

import (
	"context"
	"testing"
	"time"
)

func TestMailbox_Capacity(t *testing.T) {
	mb := NewMailbox()
	if mb.Cap() != MailboxCapacity {
		t.Fatalf("Cap() = %d, want %d", mb.Cap(), MailboxCapacity)
	}

	for i := range MailboxCapacity {
		if !mb.TryPush(&Envelope{}) {
			t.Fatalf("TryPush() #%d = false", i)
		}
	}
	if mb.TryPush(&Envelope{}) {
		t.Error("TryPush() into full mailbox = true")
	}
	if mb.Len() != MailboxCapacity {
		t.Errorf("Len() = %d, want %d", mb.Len(), MailboxCapacity)
	}
}

func TestMailbox_FIFO(t *testing.T) {
	mb := NewMailbox()
	first := &Envelope{ID: "first"}
	second := &Envelope{ID: "second"}
	mb.TryPush(first)
	mb.TryPush(second)

	if got, _ := mb.TryPop(); got != first {
		t.Errorf("TryPop() = %v, want first", got)
	}
	if got, _ := mb.TryPop(); got != second {
		t.Errorf("TryPop() = %v, want second", got)
	}
	if _, ok := mb.TryPop(); ok {
		t.Error("TryPop() on empty mailbox = true")
	}
}

func TestMailbox_Receive(t *testing.T) {
	tests := []struct {
		name    string
		prefill bool
		wait    time.Duration
		want    bool
		minTime time.Duration
	}{
		{"poll empty", false, 0, false, 0},
		{"poll filled", true, 0, true, 0},
		{"bounded empty", false, 20 * time.Millisecond, false, 20 * time.Millisecond},
		{"bounded filled", true, time.Second, true, 0},
		{"forever filled", true, WaitForever, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb := NewMailbox()
			if tt.prefill {
				mb.TryPush(&Envelope{})
			}
			start := time.Now()
			_, got := mb.Receive(context.Background(), tt.wait)
			if got != tt.want {
				t.Errorf("Receive() ok = %v, want %v", got, tt.want)
			}
			if elapsed := time.Since(start); elapsed < tt.minTime {
				t.Errorf("Receive() returned after %v, want >= %v", elapsed, tt.minTime)
			}
		})
	}
}

func TestMailbox_CloseWakesReceive(t *testing.T) {
	mb := NewMailbox()

	done := make(chan bool, 1)
	go func() {
		_, ok := mb.Receive(context.Background(), WaitForever)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	mb.Close()
	mb.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive() after Close = true")
		}
	case <-time.After(time.Second):
		t.Fatal("Receive(WaitForever) still blocked after Close")
	}

	if _, ok := mb.Receive(context.Background(), time.Second); ok {
		t.Error("bounded Receive() on closed empty mailbox = true")
	}

	mb.TryPush(&Envelope{ID: "kept"})
	if env, ok := mb.TryPop(); !ok || env.ID != "kept" {
		t.Errorf("TryPop() after Close = %v, %v, want kept envelope", env, ok)
	}
}
