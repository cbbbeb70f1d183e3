package lifecycle

import "testing"

func TestLifecycleDraining(t *testing.T) {
	var l Lifecycle
	if l.IsDraining() {
		t.Fatal("zero value should not be draining")
	}
	l.SetDraining(true)
	if !l.IsDraining() {
		t.Fatal("expected draining after SetDraining(true)")
	}
	l.SetDraining(false)
	if l.IsDraining() {
		t.Fatal("expected not draining after SetDraining(false)")
	}
}

func TestLifecycleNilReceiver(t *testing.T) {
	var l *Lifecycle
	l.SetDraining(true)
	if l.IsDraining() {
		t.Fatal("nil lifecycle should read as not draining")
	}
}
