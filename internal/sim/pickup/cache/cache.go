// Package cache holds the working set of discovered containers and the set already processed.
package cache

import "lootsweep.ai/internal/sim/host"

// Cache keeps entries in insertion order. An id is never both cached and processed.
type Cache struct {
	entries   []host.Container
	present   map[host.ContainerID]struct{}
	processed map[host.ContainerID]struct{}
}

func New() *Cache {
	return &Cache{
		present:   map[host.ContainerID]struct{}{},
		processed: map[host.ContainerID]struct{}{},
	}
}

// Refresh reconciles the cache with a live enumeration: entries no longer live are dropped, surviving
// entries keep their order, and new unprocessed containers are appended in enumeration order.
// It returns the number of entries added.
func (c *Cache) Refresh(live []host.Container) int {
	alive := make(map[host.ContainerID]host.Container, len(live))
	for _, ct := range live {
		alive[ct.ID] = ct
	}

	kept := c.entries[:0]
	for _, e := range c.entries {
		cur, ok := alive[e.ID]
		if !ok {
			delete(c.present, e.ID)
			continue
		}
		kept = append(kept, cur)
	}
	c.entries = kept

	added := 0
	for _, ct := range live {
		if _, done := c.processed[ct.ID]; done {
			continue
		}
		if _, dup := c.present[ct.ID]; dup {
			continue
		}
		c.entries = append(c.entries, ct)
		c.present[ct.ID] = struct{}{}
		added++
	}
	return added
}

// ClearAll forgets every entry and the processed set, then refreshes from live.
func (c *Cache) ClearAll(live []host.Container) int {
	c.Reset()
	return c.Refresh(live)
}

// Unprocessed counts live containers that are not processed. Comparing it with Len detects growth.
func (c *Cache) Unprocessed(live []host.Container) int {
	n := 0
	for _, ct := range live {
		if _, done := c.processed[ct.ID]; !done {
			n++
		}
	}
	return n
}

func (c *Cache) Remove(id host.ContainerID) bool {
	if _, ok := c.present[id]; !ok {
		return false
	}
	delete(c.present, id)
	for i, e := range c.entries {
		if e.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	return true
}

// MarkProcessed moves id out of the working set into the processed set.
func (c *Cache) MarkProcessed(id host.ContainerID) {
	c.Remove(id)
	c.processed[id] = struct{}{}
}

// Forget drops id from the processed set, used when a destroyed container's id may be reused.
func (c *Cache) Forget(id host.ContainerID) {
	delete(c.processed, id)
}

func (c *Cache) IsProcessed(id host.ContainerID) bool {
	_, ok := c.processed[id]
	return ok
}

func (c *Cache) Contains(id host.ContainerID) bool {
	_, ok := c.present[id]
	return ok
}

// Entries returns a copy in insertion order.
func (c *Cache) Entries() []host.Container {
	return append([]host.Container(nil), c.entries...)
}

func (c *Cache) Len() int          { return len(c.entries) }
func (c *Cache) ProcessedLen() int { return len(c.processed) }

func (c *Cache) Reset() {
	c.entries = nil
	c.present = map[host.ContainerID]struct{}{}
	c.processed = map[host.ContainerID]struct{}{}
}
