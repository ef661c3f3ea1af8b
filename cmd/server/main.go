package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"unseen.ai/internal/persistence/indexdb"
	persistlog "unseen.ai/internal/persistence/log"
	"unseen.ai/internal/persistence/snapshot"
	"unseen.ai/internal/sim/events"
	"unseen.ai/internal/sim/runtime"
	"unseen.ai/internal/sim/tuning"
	"unseen.ai/internal/sim/world"
	"unseen.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "terrain seed override (0 keeps the tuning seed)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty for built-in defaults)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tun, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *seed != 0 {
		tun.Terrain.Seed = *seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Create world (fresh or resumed from snapshot).
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		p, ok, err := snapshot.Latest(snapDir)
		if err != nil {
			logger.Fatalf("find snapshot: %v", err)
		}
		if ok {
			snapshotToLoad = p
		}
	}
	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		if s.Seed != tun.Terrain.Seed {
			// Chunks not in the snapshot are regenerated; they must match the saved ones.
			logger.Printf("snapshot seed %d overrides tuning seed %d", s.Seed, tun.Terrain.Seed)
			tun.Terrain.Seed = s.Seed
		}
		snap = &s
	}
	grid := world.NewGrid(tun.World.Height, tun.Terrain)
	if snap != nil {
		if err := snapshot.Restore(*snap, grid); err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("resumed %d chunks from %s (tick %d)", len(snap.Chunks), snapshotToLoad, snap.Header.Tick)
	}

	idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.sqlite"))
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	eventLog := persistlog.NewEventLogger(worldDir)
	defer eventLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snapCh:
				path := snapshot.Path(snapDir, s.Header.Tick)
				if err := snapshot.WriteSnapshot(path, s); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				idx.RecordSnapshot(s.Header.Tick, path, s.Seed, len(s.Chunks), s.Digest)
			}
		}
	}()

	rt, err := runtime.Build(*worldID, tun, runtime.Deps{
		Grid:         grid,
		Store:        idx,
		Sink:         events.Multi{eventLog, idx},
		Rand:         rand.New(rand.NewPCG(uint64(tun.Terrain.Seed), uint64(time.Now().UnixNano()))),
		Logger:       logger,
		SnapshotSink: snapCh,
	})
	if err != nil {
		logger.Fatalf("runtime: %v", err)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	// Local-only admin endpoint.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		st, err := rt.Status(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(st)
	})
	mux.HandleFunc("/v1/observe", observer.NewServer(rt, logger).WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world %s listening on %s (seed %d, tick %d)", *worldID, *addr, tun.Terrain.Seed, rt.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-runDone
	<-snapDone
	if err := eventLog.Err(); err != nil {
		logger.Printf("event log: %v", err)
	}
	if n := idx.Dropped(); n > 0 {
		logger.Printf("index dropped %d writes", n)
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
