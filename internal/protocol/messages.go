package protocol

// SUBSCRIBE (client -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EveryTicks thins the stream; 0 or 1 means every tick.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HUD (server -> client)
type HUDMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	SessionID       string       `json:"session_id,omitempty"`
	Messages        []HUDMessage `json:"messages"`
	Metrics         HUDMetrics   `json:"metrics"`
}

type HUDMessage struct {
	ID    uint64  `json:"id"`
	Text  string  `json:"text"`
	Count int     `json:"count"`
	Kind  string  `json:"kind"`
	Phase string  `json:"phase"`
	Alpha float64 `json:"alpha"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type HUDMetrics struct {
	Active         bool   `json:"active"`
	CacheLen       int    `json:"cache_len"`
	ProcessedLen   int    `json:"processed_len"`
	ScanIntervalMS int64  `json:"scan_interval_ms"`
	TransfersTotal uint64 `json:"transfers_total"`
	BlockedTotal   uint64 `json:"blocked_total"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// Bootstrap (HTTP GET, server -> client) describes the stream before subscribing.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	TickRateHz      int        `json:"tick_rate_hz"`
	SessionID       string     `json:"session_id"`
	Metrics         HUDMetrics `json:"metrics"`
}
