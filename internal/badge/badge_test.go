package badge

import (
	"testing"
	"time"
)

func TestBoardHopCount(t *testing.T) {
	t.Parallel()
	b := NewBoard()
	b.SetHopCount(1, 3)

	snap, ok := b.Snapshot(1)
	if !ok {
		t.Fatal("expected badge state for tab 1")
	}
	if snap.HopCount != 3 {
		t.Errorf("expected hop count 3, got %d", snap.HopCount)
	}

	if _, ok := b.Snapshot(2); ok {
		t.Error("expected no state for untouched tab")
	}
}

func TestBoardAwaitingLifecycle(t *testing.T) {
	t.Parallel()
	b := NewBoard()
	b.SetAwaiting(1, time.Now().Add(2*time.Second))

	snap, _ := b.Snapshot(1)
	if !snap.Awaiting {
		t.Fatal("expected awaiting state")
	}

	b.PulseResolved(1)
	snap, _ = b.Snapshot(1)
	if snap.Awaiting {
		t.Error("pulse must end the awaiting state")
	}
	if snap.LastPulse.IsZero() {
		t.Error("pulse must stamp LastPulse")
	}
}

func TestBoardAwaitingExpiresAtDeadline(t *testing.T) {
	t.Parallel()
	b := NewBoard()
	b.SetAwaiting(1, time.Now().Add(-time.Second))

	snap, ok := b.Snapshot(1)
	if !ok {
		t.Fatal("expected badge state")
	}
	if snap.Awaiting {
		t.Error("awaiting must read false past the deadline")
	}
}

func TestBoardClear(t *testing.T) {
	t.Parallel()
	b := NewBoard()
	b.SetHopCount(1, 2)
	b.SetHopCount(2, 4)

	b.Clear(1)
	if _, ok := b.Snapshot(1); ok {
		t.Error("expected tab 1 cleared")
	}
	if _, ok := b.Snapshot(2); !ok {
		t.Error("tab 2 must survive a single-tab clear")
	}

	b.ClearAll()
	if _, ok := b.Snapshot(2); ok {
		t.Error("expected all tabs cleared")
	}
}
