package pickup

import (
	"time"

	"github.com/google/uuid"

	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/pickup/cache"
	"lootsweep.ai/internal/sim/pickup/capacity"
	"lootsweep.ai/internal/sim/pickup/unload"
)

// Session owns the state that lives for one world: the container cache and processed set, the
// unload record and the deferred continuations. All of it is reset together.
type Session struct {
	ID        string
	StartedAt time.Duration

	Cache  *cache.Cache
	Unload *unload.Tracker
	Probe  capacity.Probe

	removals []deferred
	opens    []deferred
}

// deferred is a per-container continuation that fires once its due time is reached.
type deferred struct {
	id  host.ContainerID
	due time.Duration
}

func NewSession(weaponTag string, now time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		Cache:     cache.New(),
		Unload:    unload.New(weaponTag),
	}
}

// Reset clears every piece of session state and starts a new session id.
func (s *Session) Reset(now time.Duration) {
	s.ID = uuid.NewString()
	s.StartedAt = now
	s.Cache.Reset()
	s.Unload.Reset()
	s.Probe.Reset()
	s.removals = nil
	s.opens = nil
}

func (s *Session) scheduleRemoval(id host.ContainerID, due time.Duration) {
	if s.removalPending(id) {
		return
	}
	s.removals = append(s.removals, deferred{id: id, due: due})
}

func (s *Session) removalPending(id host.ContainerID) bool {
	for _, d := range s.removals {
		if d.id == id {
			return true
		}
	}
	return false
}

func (s *Session) scheduleOpen(id host.ContainerID, due time.Duration) {
	for _, d := range s.opens {
		if d.id == id {
			return
		}
	}
	s.opens = append(s.opens, deferred{id: id, due: due})
}

// takeDue removes and returns the continuations due at now, preserving scheduling order.
func takeDue(list *[]deferred, now time.Duration) []host.ContainerID {
	var fired []host.ContainerID
	kept := (*list)[:0]
	for _, d := range *list {
		if d.due <= now {
			fired = append(fired, d.id)
			continue
		}
		kept = append(kept, d)
	}
	*list = kept
	return fired
}

func (s *Session) PendingRemovals() int { return len(s.removals) }
func (s *Session) PendingOpens() int    { return len(s.opens) }
