package callback

import (
	"testing"
	"time"
)

func TestPolicyNetworkGrowth(t *testing.T) {
	t.Parallel()

	// Consecutive unreachable-server failures wait 2s, 3s, 4.5s, 6.75s, then
	// stay pinned at the 10s cap.
	expected := []time.Duration{
		2000 * time.Millisecond,
		3000 * time.Millisecond,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
	}

	current := DefaultPolicy.Base
	for i, want := range expected {
		wait, next := DefaultPolicy.Next(current, true)
		if wait != want {
			t.Fatalf("attempt %d: wait = %v, want %v", i+1, wait, want)
		}
		current = next
	}
}

func TestPolicyNonNetworkResets(t *testing.T) {
	t.Parallel()

	// Grow the delay with network failures first.
	current := DefaultPolicy.Base
	for i := 0; i < 3; i++ {
		_, current = DefaultPolicy.Next(current, true)
	}
	if current <= DefaultPolicy.Base {
		t.Fatalf("delay did not grow: %v", current)
	}

	// A failure that reached the server resets to base.
	wait, next := DefaultPolicy.Next(current, false)
	if wait != DefaultPolicy.Base {
		t.Errorf("wait = %v, want base %v", wait, DefaultPolicy.Base)
	}
	if next != DefaultPolicy.Base {
		t.Errorf("next = %v, want base %v", next, DefaultPolicy.Base)
	}
}

func TestPolicyCap(t *testing.T) {
	t.Parallel()

	wait, next := DefaultPolicy.Next(time.Minute, true)
	if wait != DefaultPolicy.Max {
		t.Errorf("wait = %v, want cap %v", wait, DefaultPolicy.Max)
	}
	if next != DefaultPolicy.Max {
		t.Errorf("next = %v, want cap %v", next, DefaultPolicy.Max)
	}
}

func TestPolicyZeroValueFallsBack(t *testing.T) {
	t.Parallel()

	var p Policy
	wait, next := p.Next(0, true)
	if wait != DefaultPolicy.Base {
		t.Errorf("wait = %v, want %v", wait, DefaultPolicy.Base)
	}
	if next != 3*time.Second {
		t.Errorf("next = %v, want 3s", next)
	}
}
