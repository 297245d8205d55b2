// Command tourguide wires a full run of the content pipeline: a
// Postgres-backed Profile store, Redis/WebSocket/log decision sinks, the
// worker registry, and the Scheduler, then serves /health and /metrics
// until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/utils/clock"

	"github.com/waypointcast/tourguide/notify"
	"github.com/waypointcast/tourguide/pipeline"
	"github.com/waypointcast/tourguide/profile"
	"github.com/waypointcast/tourguide/resilience"
	"github.com/waypointcast/tourguide/workers"
)

func main() {
	kinds := []pipeline.WorkerKind{pipeline.KindVisual, pipeline.KindAudio, pipeline.KindTextual}

	softDeadline, hardDeadline := 8*time.Second, 25*time.Second
	if soft := os.Getenv("SOFT_DEADLINE_SECONDS"); soft != "" {
		var secs int
		fmt.Sscanf(soft, "%d", &secs)
		if secs > 0 {
			softDeadline = time.Duration(secs) * time.Second
		}
	}
	if hard := os.Getenv("HARD_DEADLINE_SECONDS"); hard != "" {
		var secs int
		fmt.Sscanf(hard, "%d", &secs)
		if secs > 0 {
			hardDeadline = time.Duration(secs) * time.Second
		}
	}
	cfg, err := pipeline.NewCoreConfig(kinds, softDeadline, hardDeadline)
	if err != nil {
		log.Fatalf("invalid pipeline configuration: %v", err)
	}

	realClock := clock.RealClock{}

	registry := map[pipeline.WorkerKind]*pipeline.WorkerRunner{
		pipeline.KindVisual:  pipeline.NewWorkerRunner(workers.New(pipeline.KindVisual, workers.VisualFetcher{}), nil, cfg.Retry, realClock),
		pipeline.KindAudio:   pipeline.NewWorkerRunner(workers.New(pipeline.KindAudio, workers.AudioFetcher{}), nil, cfg.Retry, realClock),
		pipeline.KindTextual: pipeline.NewWorkerRunner(workers.New(pipeline.KindTextual, workers.TextualFetcher{}), nil, cfg.Retry, realClock),
	}

	breakers := make(map[pipeline.WorkerKind]*resilience.CircuitBreaker, len(kinds))
	for _, k := range kinds {
		breakers[k] = resilience.NewCircuitBreaker(realClock, string(k), 5, 30*time.Second)
	}
	limiter := pipeline.NewKindLimiter(cfg.KindRateLimit, cfg.KindRateBurst)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := []pipeline.DecisionSink{notify.NewLogSink()}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisSink, err := notify.NewRedisSink(redisAddr, os.Getenv("REDIS_PASSWORD"), 0, "tourguide:decisions")
		if err != nil {
			log.Printf("tourguide: redis sink unavailable, continuing without it: %v", err)
		} else {
			defer redisSink.Close()
			sinks = append(sinks, redisSink)
		}
	}

	hub := notify.NewHub()
	go hub.Run(ctx)
	sinks = append(sinks, hub)

	collector := pipeline.NewCollector(sinks...)
	orchestrator := pipeline.NewOrchestrator(registry, cfg.WorkerPoolSize, limiter, breakers, pipeline.NewJudge(pipeline.JudgeConfig{Weights: cfg.JudgeWeights}), collector, realClock)

	var profiles pipeline.ProfileSource
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err := profile.NewStore(ctx, dsn)
		if err != nil {
			log.Printf("tourguide: profile store unavailable, falling back to neutral profiles: %v", err)
		} else {
			defer store.Close()
			profiles = func(ctx context.Context, p pipeline.Point) (pipeline.Profile, error) {
				return store.Load(ctx, p.Key)
			}
		}
	}

	source := pipeline.NewSlicePointSource(samplePoints())
	sched := pipeline.NewScheduler(cfg, source, orchestrator, profiles, realClock)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("tourguide: received shutdown signal, draining in-flight points")
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*cfg.HardDeadline)
		defer drainCancel()
		if err := sched.Shutdown(drainCtx); err != nil {
			log.Printf("tourguide: shutdown drain did not finish cleanly: %v", err)
		}
		cancel()
	}()

	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("tourguide: scheduler run ended: %v", err)
		}
		for _, e := range collector.Snapshot() {
			log.Printf("tourguide: final playlist entry seq=%d point=%s status=%s", e.Point.Seq, e.Point.Key, e.Decision.Status)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("tourguide: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("tourguide: server error: %v", err)
	}
}

func samplePoints() []pipeline.Point {
	return []pipeline.Point{
		{Key: "pt-1", Name: "Old Town Square", Lat: 50.0870, Lng: 14.4208, HasGeo: true, PointTag: "historical"},
		{Key: "pt-2", Name: "Riverside Park", Lat: 50.0880, Lng: 14.4180, HasGeo: true, PointTag: "scenic"},
		{Key: "pt-3", Name: "Cathedral Quarter", Lat: 50.0905, Lng: 14.4016, HasGeo: true, PointTag: "religious"},
	}
}
