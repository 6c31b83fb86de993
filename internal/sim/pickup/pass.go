package pickup

import (
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/logic/ids"
	"lootsweep.ai/internal/sim/logic/mathx"
	"lootsweep.ai/internal/sim/pickup/eligibility"
	"lootsweep.ai/internal/sim/pickup/unload"
)

func (e *Engine) runPass(trigger string) PassReport {
	r := PassReport{Tick: e.tick, SessionID: e.sess.ID, Trigger: trigger}
	switch {
	case !e.active:
		r.Skipped = SkipInactive
	case !e.ready:
		r.Skipped = SkipWorldNotReady
	case e.world.IsBaseLevel:
		r.Skipped = SkipBaseLevel
	}
	if r.Skipped != "" {
		return e.finishPass(r)
	}
	pos, ok := e.actorPosition()
	if !ok {
		r.Skipped = SkipNoActor
		return e.finishPass(r)
	}

	e.refreshIfNeeded(&r)
	r.CacheLen = e.sess.Cache.Len()

	radiusSq := e.cfg.PickupRadiusSq()
	for _, ct := range e.sess.Cache.Entries() {
		alive, err := e.alive(ct.ID)
		if err != nil {
			e.hostError(&r, "alive %s: %v", ids.ContainerLabel(uint64(ct.ID)), err)
			continue
		}
		if !alive {
			e.sess.Cache.Remove(ct.ID)
			r.Pruned++
			continue
		}
		if e.sess.removalPending(ct.ID) {
			continue
		}
		r.Scanned++
		if eligibility.ContainerExcluded(ct.Name, e.tun.Rules.ExcludedNames) {
			r.Excluded++
			continue
		}
		if mathx.DistSq(pos.X, pos.Y, pos.Z, ct.Pos.X, ct.Pos.Y, ct.Pos.Z) > radiusSq {
			r.OutOfRange++
			continue
		}
		if moved := e.collect(ct, trigger, &r); moved > 0 {
			e.sess.scheduleRemoval(ct.ID, e.now+e.tun.Scan.GraceDelay())
			r.Processed++
		}
	}
	e.totals.passes++
	return e.finishPass(r)
}

func (e *Engine) finishPass(r PassReport) PassReport {
	e.totals.transfers += uint64(r.Transfers)
	e.totals.blocked += uint64(r.Blocked)
	e.totals.unloaded += uint64(r.Unloaded)
	if e.passLog != nil {
		if err := e.passLog.WritePass(r); err != nil {
			e.log.Printf("pass log: %v", err)
		}
	}
	return r
}

// refreshIfNeeded re-enumerates when the refresh timer elapsed, the cache is empty, or the world
// holds more unprocessed containers than the cache.
func (e *Engine) refreshIfNeeded(r *PassReport) {
	live, err := e.enumerate()
	if err != nil {
		e.hostError(r, "enumerate containers: %v", err)
		return
	}
	c := e.sess.Cache
	timerDue := e.sched.TakeRefresh()
	if timerDue || c.Len() == 0 || c.Unprocessed(live) > c.Len() {
		c.Refresh(live)
		r.Refreshed = true
	}
}

// collect moves eligible items from one container into the store and returns how many moved.
// A blocked store stops this container for the rest of the pass.
func (e *Engine) collect(ct host.Container, trigger string, r *PassReport) int {
	label := ids.ContainerLabel(uint64(ct.ID))
	inv, err := e.containerInventory(ct.ID)
	if err != nil {
		e.hostError(r, "inventory of %s: %v", label, err)
		return 0
	}
	if e.cfg.EnableAutoUnload {
		e.unloadWeapons(ct.ID, inv, r)
	}
	items, err := e.inventoryItems(inv)
	if err != nil {
		e.hostError(r, "items of %s: %v", label, err)
		return 0
	}

	mode := e.eval.Rules().Mode
	moved := 0
	for _, it := range items {
		ok, err := e.eligible(it)
		if err != nil {
			e.hostError(r, "wishlist lookup type=%d: %v", it.TypeID, err)
			continue
		}
		if !ok {
			continue
		}
		admit, err := e.admit(it)
		if err != nil {
			e.hostError(r, "capacity probe: %v", err)
			continue
		}
		if !admit {
			if _, shown := e.notes.ShowFull(fullText); shown {
				e.log.Printf("store full at %s", label)
			}
			r.Blocked++
			break
		}
		done, err := e.deposit(it.ID)
		if err != nil {
			e.hostError(r, "deposit item=%d from %s: %v", it.ID, label, err)
			continue
		}
		if !done {
			continue
		}
		count, left := it.StackCount, 0
		if n, ok := e.leftBehind(inv, it.ID, r); ok {
			if n >= count {
				continue
			}
			count, left = count-n, n
		}
		moved++
		e.notes.Show(messagePrefix(mode)+" "+it.DisplayName, count)
		e.writeTransfer(TransferEntry{
			Tick:          e.tick,
			SessionID:     e.sess.ID,
			Trigger:       trigger,
			Mode:          mode.String(),
			ContainerID:   uint64(ct.ID),
			ContainerName: ct.Name,
			ItemID:        uint64(it.ID),
			TypeID:        it.TypeID,
			ItemName:      it.DisplayName,
			RawName:       it.RawName,
			Count:         count,
			Remaining:     left,
			IsBullet:      it.IsBullet,
		})
	}
	r.Transfers += moved
	return moved
}

// leftBehind reports how much of a stack stayed in the source inventory after a deposit. A
// partial deposit keeps the item id with the reduced count.
func (e *Engine) leftBehind(inv host.InventoryID, id host.ItemID, r *PassReport) (int, bool) {
	items, err := e.inventoryItems(inv)
	if err != nil {
		e.hostError(r, "recount item=%d: %v", id, err)
		return 0, false
	}
	for _, it := range items {
		if it.ID == id {
			return it.StackCount, true
		}
	}
	return 0, false
}

func (e *Engine) unloadWeapons(id host.ContainerID, inv host.InventoryID, r *PassReport) {
	items, err := e.inventoryItems(inv)
	if err != nil {
		e.hostError(r, "items of %s: %v", ids.ContainerLabel(uint64(id)), err)
		return
	}
	for _, it := range items {
		if !e.sess.Unload.IsGun(it) {
			continue
		}
		var out unload.Outcome
		err := guard("unload", func() (ferr error) {
			out, ferr = e.sess.Unload.UnloadOnce(id, it, e.host, e.host)
			return
		})
		if err != nil {
			e.hostError(r, "unload %q: %v", it.DisplayName, err)
			continue
		}
		if out == unload.Unloaded {
			r.Unloaded++
		}
	}
}

// collectOpened handles a container the player opened: no distance check, no processed bookkeeping.
func (e *Engine) collectOpened(id host.ContainerID) {
	if !e.cfg.OpenCollectActive() || !e.ready {
		return
	}
	r := PassReport{Tick: e.tick, SessionID: e.sess.ID, Trigger: TriggerOpen}
	live, err := e.enumerate()
	if err != nil {
		e.hostError(&r, "enumerate containers: %v", err)
		e.finishPass(r)
		return
	}
	for _, ct := range live {
		if ct.ID != id {
			continue
		}
		r.Scanned = 1
		if eligibility.ContainerExcluded(ct.Name, e.tun.Rules.ExcludedNames) {
			r.Excluded = 1
			break
		}
		e.collect(ct, TriggerOpen, &r)
		break
	}
	e.finishPass(r)
}

func messagePrefix(m eligibility.Mode) string {
	if m == eligibility.ModeWishlist {
		return prefixWishlist
	}
	return prefixAuto
}

func (e *Engine) writeTransfer(t TransferEntry) {
	if e.transfers == nil {
		return
	}
	if err := e.transfers.WriteTransfer(t); err != nil {
		e.log.Printf("transfer log: %v", err)
	}
}

func (e *Engine) hostError(r *PassReport, format string, args ...any) {
	r.HostErrors++
	e.totals.hostErrors++
	e.log.Printf(format, args...)
}

func (e *Engine) enumerate() (live []host.Container, err error) {
	err = guard("enumerate", func() (ferr error) {
		live, ferr = e.host.EnumerateContainers()
		return
	})
	return live, err
}

func (e *Engine) alive(id host.ContainerID) (ok bool, err error) {
	err = guard("alive", func() error {
		ok = e.host.ContainerAlive(id)
		return nil
	})
	return ok, err
}

func (e *Engine) actorPosition() (pos host.Vec3, ok bool) {
	err := guard("actor position", func() error {
		pos, ok = e.host.ActorPosition()
		return nil
	})
	if err != nil {
		e.totals.hostErrors++
		e.log.Printf("%v", err)
		return host.Vec3{}, false
	}
	return pos, ok
}

func (e *Engine) containerInventory(id host.ContainerID) (inv host.InventoryID, err error) {
	err = guard("container inventory", func() (ferr error) {
		inv, ferr = e.host.ContainerInventory(id)
		return
	})
	return inv, err
}

func (e *Engine) inventoryItems(inv host.InventoryID) (items []host.Item, err error) {
	err = guard("inventory items", func() (ferr error) {
		items, ferr = e.host.InventoryItems(inv)
		return
	})
	return items, err
}

func (e *Engine) eligible(it host.Item) (ok bool, err error) {
	err = guard("eligibility", func() (ferr error) {
		ok, ferr = e.eval.Eligible(it, e.host)
		return
	})
	return ok, err
}

func (e *Engine) admit(it host.Item) (ok bool, err error) {
	err = guard("capacity", func() (ferr error) {
		ok, ferr = e.sess.Probe.Admit(e.host, it)
		return
	})
	return ok, err
}

func (e *Engine) deposit(id host.ItemID) (ok bool, err error) {
	err = guard("deposit", func() (ferr error) {
		ok, ferr = e.host.DepositItem(id, false)
		return
	})
	return ok, err
}
