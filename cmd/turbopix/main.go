// Command turbopix runs the self-hosted photo and video library server: it
// drives the background indexing pipeline (discovery, metadata extraction,
// semantic vectorization, collage derivation, housekeeping) and serves the
// HTTP API the web client talks to.
//
// Configuration is provided via environment variables (see
// internal/config), including:
//   - DATA_PATH: where the database, derivative cache, and model weights live
//   - PHOTO_PATHS: comma-separated roots to index
//   - PORT / METRICS_PORT: HTTP listen ports
//   - FFMPEG_PATH / FFPROBE_PATH / GPU_ACCEL: video transcoding
//   - MODEL_BASE_URL: where the CLIP weights are fetched from on first run
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"turbopix/internal/collage"
	"turbopix/internal/config"
	"turbopix/internal/derivcache"
	"turbopix/internal/housekeeping"
	"turbopix/internal/httpapi"
	"turbopix/internal/logging"
	"turbopix/internal/memory"
	"turbopix/internal/metadata"
	"turbopix/internal/metrics"
	"turbopix/internal/mutator"
	"turbopix/internal/pipeline"
	"turbopix/internal/search"
	"turbopix/internal/semantic"
	"turbopix/internal/store"
	"turbopix/internal/videoproc"
)

func main() {
	downloadModels := flag.Bool("download-models", false, "fetch the CLIP model weights and tokenizer, then exit")
	flag.Parse()

	startTime := time.Now()

	memory.ConfigureFromEnv()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("configuration error: %v", err)
	}

	ctx := context.Background()

	if *downloadModels {
		fmt.Printf("fetching model %s into %s\n", semantic.ModelVersion, cfg.ModelCacheDir)
		modelDir, err := semantic.Fetch(ctx, cfg.ModelCacheDir, cfg.ModelBaseURL)
		if err != nil {
			logging.Fatal("failed to fetch model: %v", err)
		}
		fmt.Printf("model ready at %s\n", modelDir)
		return
	}

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		logging.Fatal("failed to open database: %v", err)
	}

	video := videoproc.New(cfg.FFmpegPath, cfg.FFprobePath, videoproc.GPUAccel(cfg.GPUAccel))

	cache, err := derivcache.New(cfg.ThumbnailCacheDir, video)
	if err != nil {
		logging.Fatal("failed to initialize derivative cache: %v", err)
	}

	extractor := metadata.New(cfg.FFprobePath)

	var textEncoder search.TextEncoder
	var imageEncoder *semantic.Encoder
	modelDir, err := semantic.Fetch(ctx, cfg.ModelCacheDir, cfg.ModelBaseURL)
	if err != nil {
		logging.Warn("semantic model unavailable, search and vectorization are disabled: %v", err)
	} else {
		imageEncoder, err = semantic.New(modelDir)
		if err != nil {
			logging.Warn("loading semantic model failed, search and vectorization are disabled: %v", err)
			imageEncoder = nil
		} else {
			textEncoder = imageEncoder
		}
	}

	searchEngine := search.New(db, textEncoder)
	mut := mutator.New(db, cache)
	collageBuilder := collage.New(db, cache, cfg.CollageStagingDir)
	scorer := housekeeping.New(db, searchEngine)

	schedCfg := pipeline.DefaultConfig(cfg.PhotoPaths)
	schedCfg.DebounceDelay = cfg.DebounceDelay
	schedCfg.RescanHour, schedCfg.VacuumMinute = config.RescanClock()
	scheduler := pipeline.New(schedCfg, db, extractor, imageEncoder, video, collageBuilder, scorer)
	scheduler.Start(ctx)

	metrics.InitializeMetrics()
	collector := metrics.NewCollector(db, cfg.DatabasePath, 30*time.Second)
	collector.SetDerivativeCacheDir(cfg.ThumbnailCacheDir)
	collector.Start()

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("metrics server error: %v", err)
			}
		}()
	}

	server := httpapi.New(db, searchEngine, mut, cache, video, scheduler, collageBuilder, scorer, cfg.PhotoPaths, cfg.CollageAcceptDir)
	router := server.NewRouter(cfg.LogStaticFiles, cfg.LogHealthChecks, cfg.MetricsEnabled)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // video streaming responses can run long
		IdleTimeout:  60 * time.Second,
	}

	shutdownComplete := make(chan struct{})
	go handleShutdown(httpSrv, metricsSrv, db, scheduler, collector, shutdownComplete)

	logging.Info("turbopix listening on :%s (startup took %v)", cfg.Port, time.Since(startTime))
	if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error: %v", err)
	}

	<-shutdownComplete
}

func handleShutdown(
	httpSrv *http.Server,
	metricsSrv *http.Server,
	db *store.Store,
	scheduler *pipeline.Scheduler,
	collector *metrics.Collector,
	done chan struct{},
) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logging.Info("received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop()
	collector.Stop()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("metrics server shutdown error: %v", err)
		}
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		logging.Warn("http server shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		logging.Warn("database close error: %v", err)
	}

	logging.Info("shutdown complete")
}
