package admin

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lootsweep.ai/internal/sim/pickup"
)

func (h *handler) metrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	c.Status(http.StatusOK)
	writeMetrics(c.Writer, h.opts.Runtime.Metrics())
	if h.opts.Index != nil {
		s := h.opts.Index.Stats()
		gauge(c.Writer, "lootsweep_index_queue_depth", "Index writer backlog.", int64(s.QueueDepth))
		fmt.Fprintf(c.Writer, "# HELP lootsweep_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(c.Writer, "# TYPE lootsweep_index_dropped_total counter\n")
		fmt.Fprintf(c.Writer, "lootsweep_index_dropped_total{kind=%q} %d\n", "transfer", s.DropTransferTotal)
		fmt.Fprintf(c.Writer, "lootsweep_index_dropped_total{kind=%q} %d\n", "pass", s.DropPassTotal)
		fmt.Fprintf(c.Writer, "lootsweep_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	}
	if h.opts.World != nil {
		st := h.opts.World.State()
		gauge(c.Writer, "lootsweep_world_containers", "Containers in the sandbox world.", int64(st.Containers))
		gauge(c.Writer, "lootsweep_store_items", "Occupied store slots.", int64(st.StoreCount))
	}
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(w io.Writer, m pickup.Metrics) {
	gauge(w, "lootsweep_tick", "Engine tick.", int64(m.Tick))
	gauge(w, "lootsweep_active", "1 when periodic scanning is enabled.", boolGauge(m.Active))
	gauge(w, "lootsweep_ready", "1 when the world is ready.", boolGauge(m.Ready))
	gauge(w, "lootsweep_cache_len", "Containers in the working cache.", int64(m.CacheLen))
	gauge(w, "lootsweep_processed_len", "Containers already processed this session.", int64(m.ProcessedLen))
	gauge(w, "lootsweep_unload_records", "Weapons recorded as unloaded.", int64(m.UnloadRecords))
	gauge(w, "lootsweep_pending_removals", "Containers waiting out the grace delay.", int64(m.PendingRemovals))
	gauge(w, "lootsweep_notifications", "Messages on screen.", int64(m.Notifications))
	gauge(w, "lootsweep_scan_interval_ms", "Current dynamic scan interval.", m.ScanIntervalMS)

	counter(w, "lootsweep_passes_total", "Executed scan passes.", m.PassesTotal)
	counter(w, "lootsweep_transfers_total", "Items moved into the store.", m.TransfersTotal)
	counter(w, "lootsweep_blocked_total", "Containers stopped by a full store.", m.BlockedTotal)
	counter(w, "lootsweep_unloaded_total", "Weapons unloaded.", m.UnloadedTotal)
	counter(w, "lootsweep_host_errors_total", "Failed host calls.", m.HostErrorsTotal)
	counter(w, "lootsweep_resets_total", "Session resets.", m.ResetTotal)
}

func gauge(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(w io.Writer, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}

func boolGauge(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
