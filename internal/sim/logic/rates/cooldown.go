package rates

import "time"

// Cooldown admits at most one event per window. The first event is always admitted.
type Cooldown struct {
	Window time.Duration

	last  time.Duration
	armed bool
}

// Allow reports whether an event at now is admitted and, if not, how long until it would be.
func (c *Cooldown) Allow(now time.Duration) (ok bool, wait time.Duration) {
	if c.Window <= 0 {
		return true, 0
	}
	if c.armed {
		if elapsed := now - c.last; elapsed < c.Window {
			return false, c.Window - elapsed
		}
	}
	c.last = now
	c.armed = true
	return true, 0
}

func (c *Cooldown) Reset() {
	c.last = 0
	c.armed = false
}
