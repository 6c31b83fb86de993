// Package admin is the operator HTTP surface: health, Prometheus metrics, engine controls and the
// toggles record.
package admin

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/persistence/indexdb"
	"lootsweep.ai/internal/protocol"
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/pickup"
	"lootsweep.ai/internal/sim/world"
)

// Runtime is the control side of *pickup.Runtime.
type Runtime interface {
	RequestScan(ctx context.Context) (pickup.PassReport, error)
	RequestReset(ctx context.Context) (uint64, error)
	OpenContainer(ctx context.Context, id host.ContainerID) (bool, error)
	WorldReady(ctx context.Context, info pickup.WorldInfo) error
	WorldTeardown(ctx context.Context) error
	Metrics() pickup.Metrics
}

// Configs is the toggles record store. *config.Manager implements it.
type Configs interface {
	Current() (config.Config, error)
	Replace(cfg config.Config) error
	ResetToDefault() error
}

// Index is the optional query side of the sqlite index.
type Index interface {
	RecentTransfers(ctx context.Context, limit int) ([]indexdb.TransferRow, error)
	ItemTotals(ctx context.Context) ([]indexdb.ItemTotal, error)
	Stats() indexdb.Stats
}

type Options struct {
	Runtime Runtime
	Configs Configs
	// World and Index are optional.
	World  *world.World
	Index  Index
	Logger *log.Logger

	// Snapshot writes a snapshot now and returns its path.
	Snapshot func(ctx context.Context) (string, error)

	// LoopbackOnly rejects mutating requests from non-loopback peers.
	LoopbackOnly bool
	// ReadOnly leaves out every mutating route.
	ReadOnly bool

	RequestTimeout time.Duration
}

type handler struct {
	opts Options
}

func NewRouter(opts Options) *gin.Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	h := &handler{opts: opts}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(requestLogger(opts.Logger))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", h.metrics)

	v1 := r.Group("/v1")
	v1.GET("/state", h.state)
	v1.GET("/config", h.getConfig)
	v1.GET("/transfers", h.transfers)
	v1.GET("/transfers/totals", h.transferTotals)

	if opts.ReadOnly {
		return r
	}
	ctl := v1.Group("")
	if opts.LoopbackOnly {
		ctl.Use(loopbackOnly())
	}
	ctl.POST("/scan", h.scan)
	ctl.POST("/reset", h.reset)
	ctl.PUT("/config", h.putConfig)
	ctl.PATCH("/config", h.patchConfig)
	ctl.DELETE("/config", h.resetConfig)
	ctl.POST("/containers/:id/open", h.openContainer)
	ctl.POST("/world/ready", h.worldReady)
	ctl.POST("/world/teardown", h.worldTeardown)
	ctl.POST("/snapshot", h.snapshot)
	return r
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRemote(c.Request.RemoteAddr) {
			fail(c, http.StatusForbidden, protocol.ErrBadRequest, "forbidden")
			return
		}
		c.Next()
	}
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "code": code, "error": msg})
}

func (h *handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
}

// runtimeFail maps loop errors to HTTP statuses.
func runtimeFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pickup.ErrRuntimeBusy):
		fail(c, http.StatusServiceUnavailable, protocol.ErrBusy, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		fail(c, http.StatusServiceUnavailable, protocol.ErrBusy, "runtime did not respond")
	default:
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func (h *handler) state(c *gin.Context) {
	resp := gin.H{"metrics": h.opts.Runtime.Metrics()}
	if h.opts.World != nil {
		resp["world"] = h.opts.World.State()
		resp["digest"] = h.opts.World.StateDigest()
	}
	if h.opts.Index != nil {
		resp["index"] = h.opts.Index.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) scan(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	rep, err := h.opts.Runtime.RequestScan(ctx)
	if err != nil {
		runtimeFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pass": rep})
}

func (h *handler) reset(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	tick, err := h.opts.Runtime.RequestReset(ctx)
	if err != nil {
		runtimeFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tick": tick, "session_id": h.opts.Runtime.Metrics().SessionID})
}

func (h *handler) getConfig(c *gin.Context) {
	cfg, err := h.opts.Configs.Current()
	if err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// putConfig replaces the record; fields missing from the body take their defaults.
func (h *handler) putConfig(c *gin.Context) {
	h.writeConfig(c, config.Default())
}

// patchConfig applies the body on top of the current record.
func (h *handler) patchConfig(c *gin.Context) {
	cur, err := h.opts.Configs.Current()
	if err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	h.writeConfig(c, cur)
}

func (h *handler) writeConfig(c *gin.Context, base config.Config) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 64*1024))
	if err != nil {
		fail(c, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	cfg, err := config.DecodeOver(base, raw)
	if err != nil {
		fail(c, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if err := h.opts.Configs.Replace(cfg); err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *handler) resetConfig(c *gin.Context) {
	if err := h.opts.Configs.ResetToDefault(); err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, config.Default())
}

func (h *handler) openContainer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, protocol.ErrBadRequest, "bad container id")
		return
	}
	if h.opts.World != nil && !h.opts.World.ContainerAlive(host.ContainerID(id)) {
		fail(c, http.StatusNotFound, protocol.ErrNotFound, "no such container")
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	scheduled, err := h.opts.Runtime.OpenContainer(ctx, host.ContainerID(id))
	if err != nil {
		runtimeFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "scheduled": scheduled})
}

func (h *handler) worldReady(c *gin.Context) {
	var info pickup.WorldInfo
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&info); err != nil {
			fail(c, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
	}
	if info.Name == "" && h.opts.World != nil {
		cfg := h.opts.World.Config()
		info = pickup.WorldInfo{Name: cfg.Name, IsBaseLevel: cfg.BaseLevel}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.opts.Runtime.WorldReady(ctx, info); err != nil {
		runtimeFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "world": info})
}

func (h *handler) worldTeardown(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.opts.Runtime.WorldTeardown(ctx); err != nil {
		runtimeFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) snapshot(c *gin.Context) {
	if h.opts.Snapshot == nil {
		fail(c, http.StatusNotFound, protocol.ErrNotFound, "snapshots disabled")
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	path, err := h.opts.Snapshot(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": path})
}

func (h *handler) transfers(c *gin.Context) {
	if h.opts.Index == nil {
		fail(c, http.StatusNotFound, protocol.ErrNotFound, "index disabled")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := h.opts.Index.RecentTransfers(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": rows})
}

func (h *handler) transferTotals(c *gin.Context) {
	if h.opts.Index == nil {
		fail(c, http.StatusNotFound, protocol.ErrNotFound, "index disabled")
		return
	}
	rows, err := h.opts.Index.ItemTotals(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
