package pickup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/protocol"
	"lootsweep.ai/internal/sim/host"
)

var ErrRuntimeBusy = errors.New("pickup runtime busy")

type HUDJoinRequest struct {
	SessionID  string
	Out        chan []byte
	EveryTicks int
}

type HUDSubscribeRequest struct {
	SessionID  string
	EveryTicks int
}

type RuntimeOptions struct {
	TickRateHz int
	Logger     *log.Logger
	// BeforeTick runs on the loop goroutine ahead of every engine tick; the sandbox world steps here.
	BeforeTick func(tick uint64, dt time.Duration)
}

type scanReq struct{ Resp chan PassReport }
type resetReq struct{ Resp chan uint64 }

type openReq struct {
	ID   host.ContainerID
	Resp chan bool
}

type worldReq struct {
	Ready bool
	Info  WorldInfo
	Resp  chan struct{}
}

type hudClient struct {
	out   chan []byte
	every int
}

// Runtime owns the engine and drives it from a single goroutine at a fixed tick rate.
type Runtime struct {
	eng        *Engine
	log        *log.Logger
	tickRate   int
	beforeTick func(tick uint64, dt time.Duration)

	scanReq  chan scanReq
	resetReq chan resetReq
	configCh chan config.Config
	openReq  chan openReq
	worldReq chan worldReq
	hudJoin  chan HUDJoinRequest
	hudSub   chan HUDSubscribeRequest
	hudLeave chan string
	stop     chan struct{}

	hud map[string]*hudClient
}

func NewRuntime(eng *Engine, opts RuntimeOptions) *Runtime {
	if opts.TickRateHz <= 0 {
		opts.TickRateHz = 20
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Runtime{
		eng:        eng,
		log:        opts.Logger,
		tickRate:   opts.TickRateHz,
		beforeTick: opts.BeforeTick,
		scanReq:    make(chan scanReq, 16),
		resetReq:   make(chan resetReq, 16),
		configCh:   make(chan config.Config, 16),
		openReq:    make(chan openReq, 64),
		worldReq:   make(chan worldReq, 4),
		hudJoin:    make(chan HUDJoinRequest, 32),
		hudSub:     make(chan HUDSubscribeRequest, 64),
		hudLeave:   make(chan string, 32),
		stop:       make(chan struct{}),
		hud:        map[string]*hudClient{},
	}
}

func (r *Runtime) Interval() time.Duration { return time.Second / time.Duration(r.tickRate) }
func (r *Runtime) TickRateHz() int         { return r.tickRate }

func (r *Runtime) Run(ctx context.Context) error {
	interval := r.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingScans []scanReq
	var pendingResets []resetReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.scanReq:
			pendingScans = append(pendingScans, req)
		case req := <-r.resetReq:
			pendingResets = append(pendingResets, req)
		case cfg := <-r.configCh:
			r.eng.ApplyConfig(cfg)
		case req := <-r.openReq:
			req.Resp <- r.eng.OnContainerOpened(req.ID)
		case req := <-r.worldReq:
			r.handleWorld(req)
		case req := <-r.hudJoin:
			r.handleHUDJoin(req)
		case req := <-r.hudSub:
			if c, ok := r.hud[req.SessionID]; ok {
				c.every = normalizeEvery(req.EveryTicks)
			}
		case id := <-r.hudLeave:
			delete(r.hud, id)
		case <-ticker.C:
			r.step(interval, pendingResets, pendingScans)
			pendingScans = pendingScans[:0]
			pendingResets = pendingResets[:0]
		}
	}
}

func (r *Runtime) Stop() { close(r.stop) }

// StepOnce advances one tick with the same ordering as Run. It must not be called while Run is active.
// Queued config records are applied first, in order, as Run would have received them.
func (r *Runtime) StepOnce() {
	r.drainConfig()
	r.step(r.Interval(), nil, nil)
}

func (r *Runtime) drainConfig() {
	for {
		select {
		case cfg := <-r.configCh:
			r.eng.ApplyConfig(cfg)
		default:
			return
		}
	}
}

func (r *Runtime) step(dt time.Duration, resets []resetReq, scans []scanReq) {
	if r.beforeTick != nil {
		r.beforeTick(r.eng.TickCount()+1, dt)
	}
	r.eng.Tick(dt)
	for _, req := range resets {
		r.eng.Reset()
		req.Resp <- r.eng.TickCount()
	}
	for _, req := range scans {
		req.Resp <- r.eng.RunPass()
	}
	r.publishHUD()
}

func (r *Runtime) handleWorld(req worldReq) {
	if req.Ready {
		r.eng.OnWorldReady(req.Info)
	} else {
		r.eng.OnWorldTeardown()
	}
	close(req.Resp)
}

func (r *Runtime) handleHUDJoin(req HUDJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	r.hud[req.SessionID] = &hudClient{out: req.Out, every: normalizeEvery(req.EveryTicks)}
}

func normalizeEvery(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 1000 {
		return 1000
	}
	return n
}

func (r *Runtime) publishHUD() {
	if len(r.hud) == 0 {
		return
	}
	tick := r.eng.TickCount()
	var frame []byte
	for _, c := range r.hud {
		if tick%uint64(c.every) != 0 {
			continue
		}
		if frame == nil {
			b, err := json.Marshal(r.HUDFrame())
			if err != nil {
				r.log.Printf("hud frame: %v", err)
				return
			}
			frame = b
		}
		sendLatest(c.out, frame)
	}
}

// HUDFrame renders the current notification stack. Loop goroutine only.
func (r *Runtime) HUDFrame() protocol.HUDMsg {
	notes := r.eng.Notifications()
	msgs := make([]protocol.HUDMessage, 0, len(notes))
	for _, n := range notes {
		msgs = append(msgs, protocol.HUDMessage{
			ID:    n.ID,
			Text:  n.Text,
			Count: n.Count,
			Kind:  n.Kind.String(),
			Phase: n.Phase.String(),
			Alpha: n.Alpha,
			X:     n.X,
			Y:     n.Y,
		})
	}
	m := r.eng.Metrics()
	return protocol.HUDMsg{
		Type:            protocol.TypeHUD,
		ProtocolVersion: protocol.Version,
		Tick:            r.eng.TickCount(),
		SessionID:       m.SessionID,
		Messages:        msgs,
		Metrics: protocol.HUDMetrics{
			Active:         m.Active,
			CacheLen:       m.CacheLen,
			ProcessedLen:   m.ProcessedLen,
			ScanIntervalMS: m.ScanIntervalMS,
			TransfersTotal: m.TransfersTotal,
			BlockedTotal:   m.BlockedTotal,
		},
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func (r *Runtime) Metrics() Metrics { return r.eng.Metrics() }

func (r *Runtime) HUDJoin() chan<- HUDJoinRequest           { return r.hudJoin }
func (r *Runtime) HUDSubscribe() chan<- HUDSubscribeRequest { return r.hudSub }
func (r *Runtime) HUDLeave() chan<- string                  { return r.hudLeave }

// ApplyConfig hands a changed config record to the loop. It never blocks; if the queue is full the
// per-tick config poll still picks up the latest record.
func (r *Runtime) ApplyConfig(cfg config.Config) {
	select {
	case r.configCh <- cfg:
	default:
		r.log.Printf("config queue full; relying on poll")
	}
}

// RequestScan asks the loop to run one pass at the next tick. Safe from other goroutines.
func (r *Runtime) RequestScan(ctx context.Context) (PassReport, error) {
	resp := make(chan PassReport, 1)
	select {
	case r.scanReq <- scanReq{Resp: resp}:
	case <-ctx.Done():
		return PassReport{}, ctx.Err()
	}
	select {
	case rep := <-resp:
		return rep, nil
	case <-ctx.Done():
		return PassReport{}, ctx.Err()
	}
}

// RequestReset asks the loop to reset all session state at the next tick.
func (r *Runtime) RequestReset(ctx context.Context) (tick uint64, err error) {
	resp := make(chan uint64, 1)
	select {
	case r.resetReq <- resetReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case t := <-resp:
		return t, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (r *Runtime) OpenContainer(ctx context.Context, id host.ContainerID) (bool, error) {
	resp := make(chan bool, 1)
	select {
	case r.openReq <- openReq{ID: id, Resp: resp}:
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		return false, ErrRuntimeBusy
	}
	select {
	case ok := <-resp:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (r *Runtime) WorldReady(ctx context.Context, info WorldInfo) error {
	return r.sendWorld(ctx, worldReq{Ready: true, Info: info})
}

func (r *Runtime) WorldTeardown(ctx context.Context) error {
	return r.sendWorld(ctx, worldReq{})
}

func (r *Runtime) sendWorld(ctx context.Context, req worldReq) error {
	req.Resp = make(chan struct{})
	select {
	case r.worldReq <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.Resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
