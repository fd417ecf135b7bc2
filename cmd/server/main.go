package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"tilefactory.io/internal/logger"
	"tilefactory.io/internal/persistence/indexdb"
	persistlog "tilefactory.io/internal/persistence/log"
	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/tuning"
	"tilefactory.io/internal/sim/world"
	"tilefactory.io/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default: observer.listen from tuning)")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "", "catalog directory (default: built-in catalogs)")
		dataDir    = flag.String("data", "", "runtime data directory (default: persistence.data_dir from tuning)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	log := logger.New(logger.DefaultConfig(tune.Logging.Level, tune.Logging.File))
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Info("tuning not found, using defaults", zap.String("path", *tuningPath))
	}

	if strings.TrimSpace(*addr) == "" {
		*addr = tune.Observer.Listen
	}
	if strings.TrimSpace(*dataDir) == "" {
		*dataDir = tune.Persistence.DataDir
	}

	var cats *catalogs.Catalogs
	if strings.TrimSpace(*configDir) != "" {
		cats, err = catalogs.Load(*configDir)
	} else {
		cats, err = catalogs.Default()
	}
	if err != nil {
		log.Fatal("load catalogs", zap.Error(err))
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		log.Fatal("create world dir", zap.Error(err))
	}

	// The index is a read model; the sim never depends on it.
	var idx *indexdb.SQLiteIndex
	if !*disableDB && tune.Persistence.IndexDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			log.Fatal("open index", zap.Error(err))
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			log.Warn("index: upsert catalogs", zap.Error(err))
		}
	}

	var tickLoggers multiTickLogger
	if tune.Persistence.TickLog {
		tl := persistlog.NewTickLogger(worldDir)
		defer tl.Close()
		tickLoggers = append(tickLoggers, tl)
	}
	if idx != nil {
		tickLoggers = append(tickLoggers, idx)
	}
	events := persistlog.NewEventLogger(worldDir)
	defer events.Close()

	snapCh := make(chan snapshot.SnapshotV1, 2)

	var w *world.World
	seen := mapset.New[world.ItemID]()
	hooks := world.Hooks{
		Sound: func(name string, layer, x, y int) {
			_ = events.WriteEvent(persistlog.Event{Tick: w.Tick(), Name: name, Layer: layer, X: x, Y: y})
		},
		SeenResource: func(item world.ItemID) {
			if seen.Has(item) {
				return
			}
			seen.Put(item)
			log.Info("resource produced", zap.String("item", cats.Items.Name(item)), zap.Uint64("tick", w.Tick()))
		},
	}
	w, err = world.New(world.ConfigFromTuning(*worldID, tune), cats,
		world.WithLogger(log.Named("world")),
		world.WithHooks(hooks),
		world.WithTickLogger(tickLoggers),
		world.WithSnapshotSink(snapCh),
	)
	if err != nil {
		log.Fatal("world", zap.Error(err))
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			log.Fatal("read snapshot", zap.Error(err))
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			log.Fatal("snapshot world id mismatch", zap.String("flag", *worldID), zap.String("snapshot", snap.Header.WorldID))
		}
		if err := w.ImportSnapshot(snap); err != nil {
			log.Fatal("import snapshot", zap.Error(err))
		}
		log.Info("resumed from snapshot", zap.String("file", filepath.Base(snapshotToLoad)), zap.Uint64("tick", w.Tick()))
	}

	ctx, cancel := signalContext()
	defer cancel()

	writer := &snapshotWriter{worldDir: worldDir, idx: idx, log: log}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.run(ctx, snapCh)
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("world stopped", zap.Error(err))
		}
	}()

	obs := observer.NewServer(w, log.Named("observer"))
	go func() { _ = obs.Run(ctx) }()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, obs, snapCh, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.Info("listening", zap.String("addr", *addr), zap.String("world", w.ID()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("ListenAndServe", zap.Error(err))
		cancel()
	}

	<-worldDone
	<-writerDone
	// The loop has stopped, so exporting here is safe.
	writer.write(w.ExportSnapshot())
	log.Info("stopped", zap.Uint64("tick", w.Tick()))
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

type multiTickLogger []world.TickLogger

func (m multiTickLogger) WriteTick(st world.TickStats) error {
	var errs []error
	for _, l := range m {
		if err := l.WriteTick(st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
