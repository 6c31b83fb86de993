package pickup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/world"
)

type staticSource struct {
	cfg config.Config
	err error
}

func (s *staticSource) Current() (config.Config, error) {
	if s.err != nil {
		return config.Config{}, s.err
	}
	return s.cfg, nil
}

type recorder struct {
	transfers []TransferEntry
	passes    []PassReport
}

func (r *recorder) WriteTransfer(e TransferEntry) error {
	r.transfers = append(r.transfers, e)
	return nil
}

func (r *recorder) WritePass(p PassReport) error {
	r.passes = append(r.passes, p)
	return nil
}

func autoConfig() config.Config {
	c := config.Default()
	c.EnableAutoCollect = true
	c.EnableOpenCollect = false
	return c
}

type fixture struct {
	w   *world.World
	src *staticSource
	rec *recorder
	e   *Engine
}

func newFixture(t *testing.T, cfg config.Config, storeCap int) *fixture {
	t.Helper()
	w := world.New(world.WorldConfig{StoreCapacity: storeCap}, nil)
	w.SetActor(host.Vec3{})
	f := &fixture{w: w, src: &staticSource{cfg: cfg}, rec: &recorder{}}
	f.e = NewEngine(w, Options{Config: f.src, Transfers: f.rec, Passes: f.rec})
	f.e.OnWorldReady(WorldInfo{Name: "sandbox"})
	return f
}

// advance ticks the engine in 100ms steps.
func (f *fixture) advance(d time.Duration) {
	for step := 100 * time.Millisecond; d > 0; d -= step {
		f.e.Tick(step)
	}
}

func (f *fixture) shown(text string) int {
	n := 0
	for _, m := range f.w.Shown() {
		if strings.HasPrefix(m.Text, text) {
			n++
		}
	}
	return n
}

func cashItem(n int) host.Item {
	return host.Item{TypeID: 201, DisplayName: "Cash", RawName: "Item_Cash", Quality: 1, StackCount: n, MaxStack: 9999, Stackable: true}
}

func TestScan_DiscoversEmptyContainers(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	for i := 0; i < 3; i++ {
		f.w.AddContainer("Loot Crate", host.Vec3{X: float64(i)}, 4)
	}

	f.advance(2 * time.Second)

	if got := f.e.Session().Cache.Len(); got != 3 {
		t.Fatalf("cache len got=%d want=3", got)
	}
	if got := f.e.Session().Cache.ProcessedLen(); got != 0 {
		t.Fatalf("processed got=%d want=0", got)
	}
	if len(f.rec.passes) != 1 || f.rec.passes[0].Trigger != TriggerTimer || !f.rec.passes[0].Refreshed {
		t.Fatalf("passes=%+v", f.rec.passes)
	}
}

func TestScan_NoPassBeforeInterval(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	f.advance(1900 * time.Millisecond)
	if len(f.rec.passes) != 0 {
		t.Fatalf("passes=%d want=0", len(f.rec.passes))
	}
}

func TestScan_CollectsAndMarksProcessedAfterGrace(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	c := f.w.AddContainer("Loot Crate", host.Vec3{X: 3}, 4)
	if _, err := f.w.PutItem(c, cashItem(150)); err != nil {
		t.Fatalf("put: %v", err)
	}

	rep := f.e.RunPass()
	if rep.Transfers != 1 || rep.Processed != 1 {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.w.StoreItems(); len(got) != 1 || got[0].StackCount != 150 {
		t.Fatalf("store=%+v", got)
	}
	if len(f.rec.transfers) != 1 || f.rec.transfers[0].Mode != "default" || f.rec.transfers[0].Count != 150 {
		t.Fatalf("transfers=%+v", f.rec.transfers)
	}
	if f.shown("Auto pickup Cash") != 1 {
		t.Fatalf("shown=%+v", f.w.Shown())
	}

	// Inside the grace window the container is still cached but skipped.
	if _, err := f.w.PutItem(c, cashItem(5)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if rep := f.e.RunPass(); rep.Transfers != 0 || rep.Scanned != 0 {
		t.Fatalf("grace pass=%+v", rep)
	}
	if f.e.Session().Cache.IsProcessed(c) {
		t.Fatalf("processed before grace elapsed")
	}

	f.advance(500 * time.Millisecond)
	if !f.e.Session().Cache.IsProcessed(c) || f.e.Session().Cache.Contains(c) {
		t.Fatalf("container not moved to processed")
	}

	// Processed containers are never collected again in this session.
	f.advance(10 * time.Second)
	if got := f.w.ContainerItems(c); len(got) != 1 || got[0].StackCount != 5 {
		t.Fatalf("container=%+v", got)
	}
	if len(f.rec.transfers) != 1 {
		t.Fatalf("transfers=%d want=1", len(f.rec.transfers))
	}
}

func TestScan_SkipsIneligibleExcludedAndDistant(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	near := f.w.AddContainer("Loot Crate", host.Vec3{X: 1}, 4)
	f.w.PutItem(near, host.Item{TypeID: 302, DisplayName: "Scope", RawName: "Item_Scope", Tags: []string{"Scope"}, MaxStack: 1})
	f.w.PutItem(near, host.Item{TypeID: 104, DisplayName: "Buckshot", RawName: "Item_Ammo_Buckshot", Tags: []string{"Bullet"}, IsBullet: true, Quality: 0, StackCount: 8, MaxStack: 30, Stackable: true})
	tomb := f.w.AddContainer("Tombstone", host.Vec3{X: 1}, 4)
	f.w.PutItem(tomb, cashItem(10))
	far := f.w.AddContainer("Loot Crate", host.Vec3{X: 50}, 4)
	f.w.PutItem(far, cashItem(10))

	rep := f.e.RunPass()
	if rep.Scanned != 3 || rep.Excluded != 1 || rep.OutOfRange != 1 || rep.Transfers != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if len(f.w.StoreItems()) != 0 {
		t.Fatalf("store=%+v", f.w.StoreItems())
	}
}

func TestScan_WishlistMode(t *testing.T) {
	cfg := autoConfig()
	cfg.EnableAutoCollect = false
	cfg.EnableWishlistCollect = true
	f := newFixture(t, cfg, 10)
	f.w.SetWishlisted(202, true)
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, cashItem(10))
	f.w.PutItem(c, host.Item{TypeID: 202, DisplayName: "Cold Core", RawName: "Item_ColdCore", StackCount: 1, MaxStack: 10, Stackable: true})

	rep := f.e.RunPass()
	if rep.Transfers != 1 {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.w.StoreItems(); len(got) != 1 || got[0].TypeID != 202 {
		t.Fatalf("store=%+v", got)
	}
	if f.shown("Wishlist pickup Cold Core") != 1 {
		t.Fatalf("shown=%+v", f.w.Shown())
	}
}

func TestScan_FullStoreShowsOneMessagePerCooldown(t *testing.T) {
	f := newFixture(t, autoConfig(), 1)
	if _, err := f.w.PutStore(0, host.Item{TypeID: 302, DisplayName: "Scope", MaxStack: 1}); err != nil {
		t.Fatalf("put store: %v", err)
	}
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, host.Item{TypeID: 204, DisplayName: "Feather", RawName: "Item_Feather", StackCount: 3, MaxStack: 50, Stackable: true})
	f.w.PutItem(c, cashItem(10))

	rep := f.e.RunPass()
	if rep.Blocked != 1 || rep.Transfers != 0 || rep.Processed != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.shown(fullText); got != 1 {
		t.Fatalf("full messages got=%d want=1", got)
	}

	// Every timer pass inside the cooldown is blocked again without a new message.
	f.advance(10 * time.Second)
	if got := f.shown(fullText); got != 1 {
		t.Fatalf("full messages inside cooldown got=%d want=1", got)
	}
	if f.e.Metrics().BlockedTotal < 2 {
		t.Fatalf("blocked total=%d", f.e.Metrics().BlockedTotal)
	}

	f.advance(12 * time.Second)
	if got := f.shown(fullText); got != 2 {
		t.Fatalf("full messages after cooldown got=%d want=2", got)
	}
}

func TestScan_StacksIntoExistingWhenFull(t *testing.T) {
	f := newFixture(t, autoConfig(), 1)
	f.w.PutStore(0, cashItem(100))
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, cashItem(50))

	rep := f.e.RunPass()
	if rep.Transfers != 1 || rep.Blocked != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.w.StoreItems(); got[0].StackCount != 150 {
		t.Fatalf("store=%+v", got)
	}
}

func TestScan_PartialDepositReportsMovedAmount(t *testing.T) {
	f := newFixture(t, autoConfig(), 1)
	small := cashItem(90)
	small.MaxStack = 100
	f.w.PutStore(0, small)
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	loot := cashItem(30)
	loot.MaxStack = 100
	id, _ := f.w.PutItem(c, loot)

	rep := f.e.RunPass()
	if rep.Transfers != 1 {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.w.StoreItems(); got[0].StackCount != 100 {
		t.Fatalf("store=%+v", got)
	}
	if got := f.w.ContainerItems(c); len(got) != 1 || got[0].ID != id || got[0].StackCount != 20 {
		t.Fatalf("container=%+v", got)
	}
	if len(f.rec.transfers) != 1 {
		t.Fatalf("transfers=%+v", f.rec.transfers)
	}
	if got := f.rec.transfers[0]; got.Count != 10 || got.Remaining != 20 {
		t.Fatalf("got=%d/%d want=10/20", got.Count, got.Remaining)
	}
	var count int
	for _, m := range f.w.Shown() {
		if strings.HasPrefix(m.Text, "Auto pickup Cash") {
			count = m.Count
		}
	}
	if count != 10 {
		t.Fatalf("shown=%+v", f.w.Shown())
	}
}

func TestUnload_EmptyWeaponRecordedWithoutRemoval(t *testing.T) {
	cfg := autoConfig()
	cfg.EnableAutoUnload = true
	f := newFixture(t, cfg, 10)
	c := f.w.AddContainer("Weapon Rack", host.Vec3{}, 3)
	gun := host.Item{TypeID: 402, DisplayName: "AK-47", RawName: "Item_AK47", Tags: []string{"Gun"}, MaxStack: 1, Rounds: 0}
	id, _ := f.w.PutItem(c, gun)

	rep := f.e.RunPass()
	if rep.Unloaded != 0 || f.w.Unloads() != 0 {
		t.Fatalf("report=%+v unloads=%d", rep, f.w.Unloads())
	}
	it, _ := f.w.Item(id)
	key := f.e.Session().Unload.RecordKey(c, it, f.w)
	if !f.e.Session().Unload.Recorded(key) {
		t.Fatalf("key %q not recorded", key)
	}
}

func TestUnload_LoadedWeaponOnce(t *testing.T) {
	cfg := autoConfig()
	cfg.EnableAutoUnload = true
	f := newFixture(t, cfg, 10)
	c := f.w.AddContainer("Weapon Rack", host.Vec3{X: 2}, 3)
	f.w.PutItem(c, host.Item{TypeID: 401, DisplayName: "Pistol", RawName: "Item_Pistol", Tags: []string{"Gun"}, MaxStack: 1, Rounds: 12})

	if rep := f.e.RunPass(); rep.Unloaded != 1 {
		t.Fatalf("report=%+v", rep)
	}
	if rep := f.e.RunPass(); rep.Unloaded != 0 {
		t.Fatalf("second pass=%+v", rep)
	}
	if f.w.Unloads() != 1 {
		t.Fatalf("unloads=%d want=1", f.w.Unloads())
	}
}

func TestToggle_ClearsCacheAndRefreshesOnNextScan(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	for i := 0; i < 3; i++ {
		f.w.AddContainer("Loot Crate", host.Vec3{X: float64(i)}, 4)
	}
	f.e.RunPass()
	if f.e.Session().Cache.Len() != 3 {
		t.Fatalf("cache len=%d", f.e.Session().Cache.Len())
	}

	off := autoConfig()
	off.EnableAutoCollect = false
	f.src.cfg = off
	f.e.Tick(100 * time.Millisecond)
	if f.e.Active() || f.e.Session().Cache.Len() != 0 || f.e.Session().Cache.ProcessedLen() != 0 {
		t.Fatalf("active=%v cache=%d", f.e.Active(), f.e.Session().Cache.Len())
	}
	if rep := f.e.RunPass(); rep.Skipped != SkipInactive {
		t.Fatalf("report=%+v", rep)
	}

	f.src.cfg = autoConfig()
	f.e.Tick(100 * time.Millisecond)
	if !f.e.Active() || f.e.Session().Cache.Len() != 0 {
		t.Fatalf("active=%v cache=%d", f.e.Active(), f.e.Session().Cache.Len())
	}
	f.advance(2 * time.Second)
	if f.e.Session().Cache.Len() != 3 {
		t.Fatalf("cache not refreshed: %d", f.e.Session().Cache.Len())
	}
}

func TestToggle_OffAndOnWithinOneTick(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, cashItem(5))
	for i := 0; i < 2; i++ {
		f.w.AddContainer("Loot Crate", host.Vec3{X: float64(i + 1)}, 4)
	}
	f.e.RunPass()
	f.advance(500 * time.Millisecond)
	if f.e.Session().Cache.Len() != 2 || f.e.Session().Cache.ProcessedLen() != 1 {
		t.Fatalf("cache=%d processed=%d", f.e.Session().Cache.Len(), f.e.Session().Cache.ProcessedLen())
	}

	off := autoConfig()
	off.EnableAutoCollect = false
	f.e.ApplyConfig(off)
	f.e.ApplyConfig(autoConfig())
	if !f.e.Active() || f.e.Session().Cache.Len() != 0 || f.e.Session().Cache.ProcessedLen() != 0 {
		t.Fatalf("active=%v cache=%d processed=%d", f.e.Active(), f.e.Session().Cache.Len(), f.e.Session().Cache.ProcessedLen())
	}

	passes := len(f.rec.passes)
	f.advance(2 * time.Second)
	if len(f.rec.passes) != passes+1 || !f.rec.passes[passes].Refreshed {
		t.Fatalf("passes=%+v", f.rec.passes[passes:])
	}
	if f.e.Session().Cache.Len() != 3 {
		t.Fatalf("cache not refreshed: %d", f.e.Session().Cache.Len())
	}
}

func TestScan_BaseLevelAndNotReady(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	f.e.OnWorldReady(WorldInfo{Name: "Base", IsBaseLevel: true})
	if rep := f.e.RunPass(); rep.Skipped != SkipBaseLevel {
		t.Fatalf("report=%+v", rep)
	}
	f.e.OnWorldTeardown()
	if rep := f.e.RunPass(); rep.Skipped != SkipWorldNotReady {
		t.Fatalf("report=%+v", rep)
	}
	f.e.OnWorldReady(WorldInfo{Name: "sandbox"})
	f.w.RemoveActor()
	if rep := f.e.RunPass(); rep.Skipped != SkipNoActor {
		t.Fatalf("report=%+v", rep)
	}
	if got := f.e.Metrics().PassesTotal; got != 0 {
		t.Fatalf("passes total=%d want=0", got)
	}
}

func TestTeardown_ResetsSession(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, cashItem(1))
	f.e.RunPass()
	before := f.e.Session().ID
	if f.e.Session().PendingRemovals() != 1 {
		t.Fatalf("pending removals=%d", f.e.Session().PendingRemovals())
	}

	f.e.OnWorldTeardown()
	s := f.e.Session()
	if s.ID == before || s.Cache.Len() != 0 || s.PendingRemovals() != 0 || len(f.e.Notifications()) != 0 {
		t.Fatalf("session not reset: id=%s cache=%d removals=%d", s.ID, s.Cache.Len(), s.PendingRemovals())
	}
}

func TestReset_KeepsMessages(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	c := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.PutItem(c, cashItem(1))
	f.e.RunPass()

	f.e.Reset()
	if len(f.e.Notifications()) != 1 {
		t.Fatalf("notifications=%d want=1", len(f.e.Notifications()))
	}
	if f.e.Session().PendingRemovals() != 0 || f.e.Metrics().ResetTotal != 1 {
		t.Fatalf("metrics=%+v", f.e.Metrics())
	}
}

func TestOpenCollect(t *testing.T) {
	cfg := config.Default()
	cfg.EnableAutoCollect = true
	f := newFixture(t, cfg, 10)
	if f.e.Active() {
		t.Fatalf("periodic scan active in open-collect mode")
	}
	c := f.w.AddContainer("Loot Crate", host.Vec3{X: 100}, 4)
	f.w.PutItem(c, cashItem(7))

	if !f.e.OnContainerOpened(c) {
		t.Fatalf("open-collect not accepted")
	}
	if len(f.w.StoreItems()) != 0 {
		t.Fatalf("collected before delay")
	}
	f.advance(100 * time.Millisecond)
	if got := f.w.StoreItems(); len(got) != 1 || got[0].StackCount != 7 {
		t.Fatalf("store=%+v", got)
	}
	last := f.rec.passes[len(f.rec.passes)-1]
	if last.Trigger != TriggerOpen || last.Transfers != 1 {
		t.Fatalf("pass=%+v", last)
	}
	if f.e.Session().Cache.IsProcessed(c) {
		t.Fatalf("open-collect touched processed set")
	}

	off := cfg
	off.EnableAutoCollect = false
	f.src.cfg = off
	f.e.Tick(0)
	if f.e.OnContainerOpened(c) {
		t.Fatalf("open-collect accepted while disabled")
	}
}

func TestConfigReadFailureKeepsLastKnown(t *testing.T) {
	f := newFixture(t, autoConfig(), 10)
	f.src.err = errors.New("blob unavailable")
	f.e.Tick(100 * time.Millisecond)
	if !f.e.Active() || f.e.Config() != autoConfig() {
		t.Fatalf("config lost: %+v", f.e.Config())
	}
	f.src.err = nil
	f.src.cfg.ScanIntervalSec = 4
	f.e.Tick(100 * time.Millisecond)
	if f.e.Scheduler().Base() != 4*time.Second {
		t.Fatalf("base=%v", f.e.Scheduler().Base())
	}
}

type panickingHost struct {
	*world.World
}

func (p panickingHost) DepositItem(host.ItemID, bool) (bool, error) { panic("host exploded") }

func TestHostPanicIsContained(t *testing.T) {
	w := world.New(world.WorldConfig{StoreCapacity: 4}, nil)
	c := w.AddContainer("Loot Crate", host.Vec3{}, 4)
	w.PutItem(c, cashItem(3))
	e := NewEngine(panickingHost{w}, Options{Config: &staticSource{cfg: autoConfig()}})
	e.OnWorldReady(WorldInfo{Name: "sandbox"})

	rep := e.RunPass()
	if rep.HostErrors != 1 || rep.Transfers != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if e.Metrics().HostErrorsTotal != 1 {
		t.Fatalf("metrics=%+v", e.Metrics())
	}
}

func TestEnumerateErrorCounted(t *testing.T) {
	f := newFixture(t, autoConfig(), 4)
	f.w.FailEnumerate(errors.New("no world"))
	rep := f.e.RunPass()
	if rep.HostErrors != 1 || rep.Refreshed {
		t.Fatalf("report=%+v", rep)
	}
}

func TestDestroyedContainerPruned(t *testing.T) {
	f := newFixture(t, autoConfig(), 4)
	a := f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.w.AddContainer("Loot Crate", host.Vec3{}, 4)
	f.e.RunPass()
	f.w.Destroy(a)
	rep := f.e.RunPass()
	if rep.Pruned != 1 || f.e.Session().Cache.Len() != 1 {
		t.Fatalf("report=%+v cache=%d", rep, f.e.Session().Cache.Len())
	}
}
