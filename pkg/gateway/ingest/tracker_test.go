package ingest

import (
	"context"
	"testing"
	"time"
)

func TestTrackerRegisterAndCount(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("Count = %d", tr.Count())
	}

	unregister := tr.Register("s1", Handle{})
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}

	unregister()
	unregister() // safe to call twice
	if tr.Count() != 0 {
		t.Fatalf("Count = %d, want 0", tr.Count())
	}
}

func TestTrackerReregisterReleasesOld(t *testing.T) {
	tr := NewTracker()
	tr.Register("s1", Handle{})
	unregister := tr.Register("s1", Handle{})
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}

	// The old entry was released on re-register, so unregistering the
	// current one fully drains the tracker.
	unregister()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatal("Wait should drain after the current entry unregisters")
	}
}

func TestTrackerWarnAndCancelAll(t *testing.T) {
	tr := NewTracker()

	var warned []string
	canceled := 0
	tr.Register("s1", Handle{
		Warn:   func(msg string) error { warned = append(warned, msg); return nil },
		Cancel: func() { canceled++ },
	})
	tr.Register("s2", Handle{
		Warn:   func(msg string) error { warned = append(warned, msg); return nil },
		Cancel: func() { canceled++ },
	})

	if sent := tr.WarnAll("closing soon"); sent != 2 {
		t.Fatalf("WarnAll sent = %d", sent)
	}
	if len(warned) != 2 || warned[0] != "closing soon" {
		t.Fatalf("warned = %v", warned)
	}
	if got := tr.CancelAll(); got != 2 {
		t.Fatalf("CancelAll = %d", got)
	}
	if canceled != 2 {
		t.Fatalf("canceled = %d", canceled)
	}
}

func TestTrackerWaitDrains(t *testing.T) {
	tr := NewTracker()
	unregister := tr.Register("s1", Handle{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		unregister()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !tr.Wait(ctx) {
		t.Fatal("Wait should return true after drain")
	}
}

func TestTrackerNilSafe(t *testing.T) {
	var tr *Tracker
	if tr.Count() != 0 || tr.WarnAll("x") != 0 || tr.CancelAll() != 0 {
		t.Fatal("nil tracker should be inert")
	}
	if !tr.Wait(context.Background()) {
		t.Fatal("nil tracker Wait should return true")
	}
	tr.Register("s", Handle{})()
}
