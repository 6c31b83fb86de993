package pickup

// Metrics is a read-only view of engine state. It is published from the loop goroutine and read
// from HTTP handlers and tests.
type Metrics struct {
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`

	Active bool `json:"active"`
	Ready  bool `json:"ready"`

	CacheLen        int `json:"cache_len"`
	ProcessedLen    int `json:"processed_len"`
	UnloadRecords   int `json:"unload_records"`
	PendingRemovals int `json:"pending_removals"`
	PendingOpens    int `json:"pending_opens"`
	Notifications   int `json:"notifications"`

	ScanIntervalMS int64 `json:"scan_interval_ms"`

	PassesTotal     uint64 `json:"passes_total"`
	TransfersTotal  uint64 `json:"transfers_total"`
	BlockedTotal    uint64 `json:"blocked_total"`
	UnloadedTotal   uint64 `json:"unloaded_total"`
	HostErrorsTotal uint64 `json:"host_errors_total"`
	ResetTotal      uint64 `json:"reset_total"`
}

type totals struct {
	passes     uint64
	transfers  uint64
	blocked    uint64
	unloaded   uint64
	hostErrors uint64
	resets     uint64
}

func (e *Engine) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	v := e.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (e *Engine) publishMetrics() {
	e.metrics.Store(Metrics{
		Tick:            e.tick,
		SessionID:       e.sess.ID,
		Active:          e.active,
		Ready:           e.ready,
		CacheLen:        e.sess.Cache.Len(),
		ProcessedLen:    e.sess.Cache.ProcessedLen(),
		UnloadRecords:   e.sess.Unload.Len(),
		PendingRemovals: e.sess.PendingRemovals(),
		PendingOpens:    e.sess.PendingOpens(),
		Notifications:   e.notes.Len(),
		ScanIntervalMS:  e.sched.Interval().Milliseconds(),
		PassesTotal:     e.totals.passes,
		TransfersTotal:  e.totals.transfers,
		BlockedTotal:    e.totals.blocked,
		UnloadedTotal:   e.totals.unloaded,
		HostErrorsTotal: e.totals.hostErrors,
		ResetTotal:      e.totals.resets,
	})
}
