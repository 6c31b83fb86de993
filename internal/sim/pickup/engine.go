// Package pickup runs the periodic world-scan collection: it discovers containers, moves eligible
// items into the store and reports what it did through messages, logs and metrics.
package pickup

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/pickup/eligibility"
	"lootsweep.ai/internal/sim/pickup/notify"
	"lootsweep.ai/internal/sim/tuning"
)

const (
	fullText       = "Store full, pickup paused"
	prefixAuto     = "Auto pickup"
	prefixWishlist = "Wishlist pickup"
)

// ConfigSource is read once per tick. A failing read keeps the last known record.
type ConfigSource interface {
	Current() (config.Config, error)
}

type WorldInfo struct {
	Name        string `json:"name"`
	IsBaseLevel bool   `json:"is_base_level"`
}

type Options struct {
	Tuning    tuning.Tuning
	Config    ConfigSource
	Logger    *log.Logger
	Transfers TransferLogger
	Passes    PassLogger
}

// Engine is not safe for concurrent use; Runtime serializes access to it.
type Engine struct {
	host host.Host
	tun  tuning.Tuning
	src  ConfigSource
	log  *log.Logger

	transfers TransferLogger
	passLog   PassLogger

	cfg        config.Config
	applied    bool
	cfgFailing bool
	active     bool

	ready bool
	world WorldInfo

	now  time.Duration
	tick uint64

	sched *Scheduler
	sess  *Session
	eval  *eligibility.Evaluator
	notes *notify.Throttler

	totals  totals
	metrics atomic.Value
}

func NewEngine(h host.Host, opts Options) *Engine {
	opts.Tuning.ApplyDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		host:      h,
		tun:       opts.Tuning,
		src:       opts.Config,
		log:       logger,
		transfers: opts.Transfers,
		passLog:   opts.Passes,
	}

	cfg := config.Default()
	if e.src != nil {
		if c, err := e.src.Current(); err == nil {
			cfg = c
		} else {
			e.log.Printf("config read failed, using defaults: %v", err)
		}
	}
	e.sched = NewScheduler(SchedulerConfigFromTuning(e.tun.Scan), cfg.ScanInterval())
	e.sess = NewSession(e.tun.Rules.WeaponTag, 0)
	e.notes = notify.New(e.notifyConfig(cfg), h)
	e.ApplyConfig(cfg)
	e.publishMetrics()
	return e
}

// Tick advances the engine by dt: config, message fades, deferred continuations, then the scheduler.
func (e *Engine) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	e.now += dt
	e.tick++

	e.pollConfig()
	e.notes.Advance(dt)
	e.runDeferred()

	if e.active && e.ready {
		due := e.sched.Advance(dt, e.sess.Cache.Len())
		if due.Clear {
			e.clearAll()
		}
		if due.Scan {
			e.runPass(TriggerTimer)
		}
	}
	e.publishMetrics()
}

// RunPass runs one scan pass now, outside the scheduler's cadence.
func (e *Engine) RunPass() PassReport {
	r := e.runPass(TriggerManual)
	e.publishMetrics()
	return r
}

// Reset drops all session state and restarts the timers. Messages on screen finish their fades.
func (e *Engine) Reset() {
	e.sess.Reset(e.now)
	e.sched.ResetTimers()
	e.totals.resets++
	e.log.Printf("session reset: session=%s", e.sess.ID)
	e.publishMetrics()
}

func (e *Engine) OnWorldReady(info WorldInfo) {
	e.world = info
	e.ready = true
	e.sched.ResetTimers()
	e.log.Printf("world ready: name=%q base=%v", info.Name, info.IsBaseLevel)
	e.publishMetrics()
}

// OnWorldTeardown resets the session and drops every pending continuation and message.
func (e *Engine) OnWorldTeardown() {
	e.ready = false
	e.world = WorldInfo{}
	e.sess.Reset(e.now)
	e.sched.ResetTimers()
	e.notes.Clear()
	e.log.Printf("world teardown: session=%s", e.sess.ID)
	e.publishMetrics()
}

// ApplyConfig installs a config record. A change of the periodic-active flag clears the cache and
// processed set and restarts every timer.
func (e *Engine) ApplyConfig(cfg config.Config) {
	if e.applied && cfg == e.cfg {
		return
	}
	e.cfg = cfg
	e.applied = true

	e.sched.SetBase(cfg.ScanInterval())
	e.notes.SetConfig(e.notifyConfig(cfg))
	e.eval = eligibility.New(e.rulesFor(cfg))

	active := cfg.PeriodicActive()
	if active != e.active {
		e.active = active
		e.sess.Cache.Reset()
		e.sched.ResetTimers()
		e.log.Printf("periodic scan active=%v", active)
	}
}

// OnContainerOpened schedules open-collect for a container the player opened. It reports whether
// open-collect is enabled.
func (e *Engine) OnContainerOpened(id host.ContainerID) bool {
	if !e.cfg.OpenCollectActive() {
		return false
	}
	e.sess.scheduleOpen(id, e.now+e.tun.Scan.OpenCollectDelay())
	return true
}

func (e *Engine) pollConfig() {
	if e.src == nil {
		return
	}
	cfg, err := e.src.Current()
	if err != nil {
		if !e.cfgFailing {
			e.log.Printf("config read failed, keeping last known: %v", err)
			e.cfgFailing = true
		}
		return
	}
	e.cfgFailing = false
	e.ApplyConfig(cfg)
}

func (e *Engine) runDeferred() {
	for _, id := range takeDue(&e.sess.removals, e.now) {
		e.sess.Cache.MarkProcessed(id)
	}
	for _, id := range takeDue(&e.sess.opens, e.now) {
		e.collectOpened(id)
	}
}

func (e *Engine) clearAll() {
	live, err := e.enumerate()
	if err != nil {
		e.totals.hostErrors++
		e.log.Printf("clear: enumerate containers: %v", err)
		e.sess.Cache.Reset()
		return
	}
	e.sess.Cache.ClearAll(live)
}

func (e *Engine) rulesFor(cfg config.Config) eligibility.Rules {
	mode := eligibility.ModeDefault
	if cfg.EnableWishlistCollect {
		mode = eligibility.ModeWishlist
	}
	return eligibility.Rules{
		Mode:       mode,
		MinQuality: cfg.MinQuality,
		AllowKeys:  e.tun.Rules.AllowKeys,
		DenyTags:   e.tun.Rules.DenyTags,
	}
}

func (e *Engine) notifyConfig(cfg config.Config) notify.Config {
	return notify.Config{
		FadeIn:       e.tun.Notify.FadeIn(),
		Visible:      e.tun.Notify.Visible(),
		FadeOut:      e.tun.Notify.FadeOut(),
		FullCooldown: cfg.MessageCooldown(),
		Spacing:      e.tun.Notify.SpacingPx,
		AnchorX:      cfg.MessageX,
		AnchorY:      cfg.MessageY,
	}
}

func (e *Engine) Config() config.Config           { return e.cfg }
func (e *Engine) Session() *Session               { return e.sess }
func (e *Engine) Scheduler() *Scheduler           { return e.sched }
func (e *Engine) Notifications() []notify.Message { return e.notes.Active() }
func (e *Engine) Now() time.Duration              { return e.now }
func (e *Engine) TickCount() uint64               { return e.tick }
func (e *Engine) Ready() bool                     { return e.ready }
func (e *Engine) Active() bool                    { return e.active }
