package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/persistence/indexdb"
	persistlog "lootsweep.ai/internal/persistence/log"
	"lootsweep.ai/internal/persistence/snapshot"
	"lootsweep.ai/internal/sim/catalogs"
	"lootsweep.ai/internal/sim/pickup"
	"lootsweep.ai/internal/sim/tuning"
	"lootsweep.ai/internal/sim/world"
	"lootsweep.ai/internal/transport/admin"
	"lootsweep.ai/internal/transport/observer"
)

func main() {
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("LS_ADDR", ":8080"), "http listen address")
		worldID    = flag.String("world", envString("LS_WORLD", "sandbox"), "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", envString("LS_DATA_DIR", "./data"), "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (config then lives in memory only)")
		baseLevel  = flag.Bool("base_level", false, "report the sandbox world as a base level")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	var blobs config.BlobStore = config.NewMemStore()
	if idx != nil {
		defer idx.Close()
		blobs = idx
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	wcfg := world.ConfigFromTuning(tune.Sandbox)
	wcfg.Name = *worldID
	wcfg.BaseLevel = *baseLevel
	w := world.New(wcfg, cats)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		restoreConfigBlob(blobs, snap.Config, logger)
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	cfgMgr := config.NewManager(blobs, log.New(os.Stdout, "[config] ", log.LstdFlags|log.Lmicroseconds))
	_ = cfgMgr.Load()

	transferLog := persistlog.NewTransferLogger(worldDir)
	passLog := persistlog.NewPassLogger(worldDir)
	defer transferLog.Close()
	defer passLog.Close()
	tee := persistlog.Tee{
		Transfers: []pickup.TransferLogger{transferLog},
		Passes:    []pickup.PassLogger{passLog},
	}
	if idx != nil {
		tee.Transfers = append(tee.Transfers, idx)
		tee.Passes = append(tee.Passes, idx)
	}

	eng := pickup.NewEngine(w, pickup.Options{
		Tuning:    tune,
		Config:    cfgMgr,
		Logger:    log.New(os.Stdout, "[pickup] ", log.LstdFlags|log.Lmicroseconds),
		Transfers: tee,
		Passes:    tee,
	})

	ctx, cancel := signalContext()
	defer cancel()

	var rec snapshotRecorder
	if idx != nil {
		rec = idx
	}
	snaps := newSnapshotter(w, cfgMgr, worldDir, *worldID, rec, logger)
	go snaps.Run(ctx)

	snapEvery := uint64(w.Config().SnapshotEveryTicks)
	rt := pickup.NewRuntime(eng, pickup.RuntimeOptions{
		TickRateHz: tune.TickRateHz,
		Logger:     log.New(os.Stdout, "[runtime] ", log.LstdFlags|log.Lmicroseconds),
		BeforeTick: func(tick uint64, _ time.Duration) {
			w.Step(tick)
			if snapEvery > 0 && tick%snapEvery == 0 {
				snaps.Enqueue(tick)
			}
		},
	})
	unsubscribe := cfgMgr.Subscribe(rt.ApplyConfig)
	defer unsubscribe()

	go func() {
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("runtime stopped: %v", err)
		}
	}()

	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rt.WorldReady(readyCtx, pickup.WorldInfo{Name: wcfg.Name, IsBaseLevel: wcfg.BaseLevel}); err != nil {
		logger.Printf("world ready: %v", err)
	}
	readyCancel()

	enableAdminHTTP := envBool("LS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("LS_ENABLE_PPROF_HTTP", false)
	if !enableAdminHTTP {
		logger.Printf("admin endpoints disabled (LS_ENABLE_ADMIN_HTTP=false)")
	}

	gin.SetMode(gin.ReleaseMode)
	opts := admin.Options{
		Runtime:        rt,
		Configs:        cfgMgr,
		World:          w,
		Logger:         log.New(os.Stdout, "[http] ", log.LstdFlags|log.Lmicroseconds),
		Snapshot:       snaps.WriteNow,
		LoopbackOnly:   !envBool("LS_ADMIN_ALLOW_REMOTE", false),
		ReadOnly:       !enableAdminHTTP,
		RequestTimeout: time.Duration(envInt("LS_ADMIN_TIMEOUT_MS", 5000)) * time.Millisecond,
	}
	if idx != nil {
		opts.Index = idx
	}
	router := admin.NewRouter(opts)

	obsSrv := observer.NewServer(rt, logger)
	obsSrv.AllowRemote = envBool("LS_HUD_ALLOW_REMOTE", false)
	router.GET("/v1/hud/bootstrap", gin.WrapF(obsSrv.BootstrapHandler()))
	router.GET("/v1/hud/ws", gin.WrapF(obsSrv.WSHandler()))

	if enablePprofHTTP {
		router.GET("/debug/pprof/", gin.WrapF(pprof.Index))
		router.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		router.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		router.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		router.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	} else {
		logger.Printf("pprof endpoints disabled (LS_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if _, err := snaps.WriteNow(context.Background()); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
}

// restoreConfigBlob seeds the store from a snapshot when it has no record of its own.
func restoreConfigBlob(store config.BlobStore, blob []byte, logger *log.Logger) {
	if len(blob) == 0 {
		return
	}
	if _, err := store.LoadBlob(config.BlobKey); !errors.Is(err, config.ErrNotFound) {
		return
	}
	if _, err := config.Decode(blob); err != nil {
		logger.Printf("snapshot config ignored: %v", err)
		return
	}
	if err := store.SaveBlob(config.BlobKey, blob); err != nil {
		logger.Printf("restore snapshot config: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

var _ admin.Index = (*indexdb.SQLiteIndex)(nil)
