package pickup

import (
	"time"

	"lootsweep.ai/internal/sim/tuning"
)

// SchedulerConfig holds the fixed cadences. The base scan interval comes from the user config.
type SchedulerConfig struct {
	RefreshEvery  time.Duration
	ClearEvery    time.Duration
	PerfEvery     time.Duration
	MinInterval   time.Duration
	MaxInterval   time.Duration
	LoadThreshold int
}

func SchedulerConfigFromTuning(s tuning.ScanTuning) SchedulerConfig {
	return SchedulerConfig{
		RefreshEvery:  s.RefreshEvery(),
		ClearEvery:    s.ClearEvery(),
		PerfEvery:     s.PerfEvery(),
		MinInterval:   s.MinInterval(),
		MaxInterval:   s.MaxInterval(),
		LoadThreshold: s.LoadThreshold,
	}
}

// Due is what a single Advance asks the engine to do, in this order.
type Due struct {
	Clear bool
	Scan  bool
}

type Scheduler struct {
	cfg SchedulerConfig

	base     time.Duration
	interval time.Duration

	scanTimer    time.Duration
	refreshTimer time.Duration
	clearTimer   time.Duration
	perfTimer    time.Duration
}

func NewScheduler(cfg SchedulerConfig, base time.Duration) *Scheduler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	s := &Scheduler{cfg: cfg}
	s.base = s.clamp(base)
	s.interval = s.base
	return s
}

func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d < s.cfg.MinInterval {
		return s.cfg.MinInterval
	}
	return d
}

// SetBase installs a configured interval. A change resets the dynamic interval to it.
func (s *Scheduler) SetBase(base time.Duration) {
	base = s.clamp(base)
	if base == s.base {
		return
	}
	s.base = base
	s.interval = base
}

// Advance moves every timer by dt and reports the work that became due.
// cacheLen feeds the load check when the performance timer fires.
func (s *Scheduler) Advance(dt time.Duration, cacheLen int) Due {
	if dt < 0 {
		dt = 0
	}
	s.scanTimer += dt
	s.refreshTimer += dt
	s.clearTimer += dt
	s.perfTimer += dt

	var due Due
	if s.cfg.ClearEvery > 0 && s.clearTimer >= s.cfg.ClearEvery {
		s.clearTimer = 0
		due.Clear = true
	}
	if s.cfg.PerfEvery > 0 && s.perfTimer >= s.cfg.PerfEvery {
		s.perfTimer = 0
		s.interval = s.intervalFor(cacheLen)
	}
	if s.scanTimer >= s.interval {
		s.scanTimer = 0
		due.Scan = true
	}
	return due
}

func (s *Scheduler) intervalFor(cacheLen int) time.Duration {
	if cacheLen <= s.cfg.LoadThreshold {
		return s.base
	}
	d := s.base * 2
	if d > s.cfg.MaxInterval {
		d = s.cfg.MaxInterval
	}
	// Load never shortens the interval.
	if d < s.base {
		d = s.base
	}
	return d
}

// TakeRefresh reports whether the refresh timer elapsed and restarts it if so.
func (s *Scheduler) TakeRefresh() bool {
	if s.refreshTimer < s.cfg.RefreshEvery {
		return false
	}
	s.refreshTimer = 0
	return true
}

func (s *Scheduler) ResetTimers() {
	s.scanTimer = 0
	s.refreshTimer = 0
	s.clearTimer = 0
	s.perfTimer = 0
	s.interval = s.base
}

func (s *Scheduler) Interval() time.Duration { return s.interval }
func (s *Scheduler) Base() time.Duration     { return s.base }
