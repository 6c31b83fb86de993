package rates

import (
	"testing"
	"time"
)

func TestCooldown_FirstEventAlwaysAdmitted(t *testing.T) {
	c := Cooldown{Window: 20 * time.Second}
	if ok, _ := c.Allow(5 * time.Second); !ok {
		t.Fatalf("expected first event admitted")
	}
}

func TestCooldown_Monotonic(t *testing.T) {
	c := Cooldown{Window: 20 * time.Second}
	var admitted []time.Duration
	for now := time.Duration(0); now <= 65*time.Second; now += 500 * time.Millisecond {
		if ok, _ := c.Allow(now); ok {
			admitted = append(admitted, now)
		}
	}
	if len(admitted) != 4 {
		t.Fatalf("admitted=%v want 4 events", admitted)
	}
	for i := 1; i < len(admitted); i++ {
		if gap := admitted[i] - admitted[i-1]; gap < 20*time.Second {
			t.Fatalf("gap=%v below window", gap)
		}
	}
}

func TestCooldown_WaitAndReset(t *testing.T) {
	c := Cooldown{Window: 10 * time.Second}
	c.Allow(0)
	ok, wait := c.Allow(4 * time.Second)
	if ok || wait != 6*time.Second {
		t.Fatalf("ok=%v wait=%v want=false,6s", ok, wait)
	}
	c.Reset()
	if ok, _ := c.Allow(5 * time.Second); !ok {
		t.Fatalf("expected admit after reset")
	}
}

func TestCooldown_ZeroWindowDisablesGate(t *testing.T) {
	var c Cooldown
	for i := 0; i < 3; i++ {
		if ok, _ := c.Allow(0); !ok {
			t.Fatalf("zero window must admit everything")
		}
	}
}
