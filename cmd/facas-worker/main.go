// Package main provides the complexity-engine worker binary: it consumes
// DXF analysis requests off the event bus, scores them, and publishes
// results, while serving health/readiness/metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facasdxf/complexity-engine/internal/bus"
	"github.com/facasdxf/complexity-engine/internal/cache"
	"github.com/facasdxf/complexity-engine/internal/config"
	apperrors "github.com/facasdxf/complexity-engine/internal/pkg/errors"
	"github.com/facasdxf/complexity-engine/internal/pkg/logger"
	"github.com/facasdxf/complexity-engine/internal/pkg/middleware"
	"github.com/facasdxf/complexity-engine/internal/metrics"
	"github.com/facasdxf/complexity-engine/internal/storage"
	"github.com/facasdxf/complexity-engine/internal/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	inFlightCounter int64
	serverReady     atomic.Bool
)

// shutdownSignals are the signals that trigger a graceful shutdown.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	rootCmd := &cobra.Command{
		Use:   "facas-worker",
		Short: "Facas complexity engine worker",
		Long: `facas-worker consumes DXF analysis requests from the event bus,
scores die-cutting complexity and publishes results.

Examples:
  facas-worker                      # Start with defaults
  facas-worker -c /etc/facas/config.yaml
  facas-worker --http-port 9090`,
		RunE:         runWorker,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().Int("http-port", 8090, "HTTP server port (health/readiness/metrics)")
	rootCmd.Flags().String("host", "0.0.0.0", "server host")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("facas-worker %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	httpPort, _ := cmd.Flags().GetInt("http-port")
	host, _ := cmd.Flags().GetString("host")

	logLevel := "info"
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, "text")

	log.Info("starting facas-worker", "version", version, "http_port", httpPort)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Version == "" || cfg.Version == "dev" {
		cfg.Version = version
	}

	compiled, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to compile config: %w", err)
	}

	metricsSvc := metrics.New()
	defer func() { _ = metricsSvc.Close() }()
	log.Info("initialized metrics")

	innerBus, err := bus.NewBus(bus.Config{
		Type:         cfg.BusType,
		RabbitURL:    cfg.RabbitURL,
		KafkaBrokers: cfg.KafkaBrokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	eventBus := bus.NewInstrumentedBus(innerBus, metricsSvc)
	log.Info("event bus instrumented with metrics", "type", cfg.BusType)

	resultCache := cache.NewFileCache(cfg.CacheFolder)
	log.Info("result cache ready", "path", cfg.CacheFolder)

	var imageGateway storage.Gateway
	if cfg.ImageStorage.Provider == "s3" {
		gw, err := storage.NewS3Gateway(context.Background(), compiled.Storage)
		if err != nil {
			return fmt.Errorf("failed to create S3 gateway: %w", err)
		}
		imageGateway = gw
		log.Info("image storage ready", "provider", "s3", "bucket", cfg.ImageStorage.Bucket)
	} else {
		imageGateway = storage.NullGateway{}
		log.Info("image storage disabled")
	}

	w := worker.New(cfg, compiled, eventBus, resultCache, imageGateway, metricsSvc, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	if err := w.Start(workerCtx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	log.Info("worker subscribed to analysis requests", "topic", cfg.RabbitQueueRequest)

	mux := http.NewServeMux()
	registerRoutes(mux, metricsSvc, resultCache, version)

	handler := http.Handler(mux)
	handler = inFlightMiddleware(handler)
	if cfg.RateLimitPerSecond > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.RateLimitPerSecond),
			Burst:             cfg.RateLimitPerSecond * 2,
			CleanupInterval:   time.Minute,
		})
		handler = limiter.Middleware(handler)
		log.Info("rate limiting enabled", "requests_per_second", cfg.RateLimitPerSecond)
	}
	handler = loggingMiddleware(handler, log)
	handler = recoveryMiddleware(handler, log)

	httpAddr := fmt.Sprintf("%s:%d", host, httpPort)
	httpSrv := &http.Server{
		Addr:         httpAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		serverReady.Store(true)
		log.Info("starting HTTP server", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownTimeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	serverReady.Store(false)
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}

	log.Info("draining in-flight requests...")
	if drainInFlight(shutdownTimeout, log) {
		log.Info("all in-flight requests completed")
	} else {
		log.Warn("shutdown timeout reached with pending requests", "remaining", atomic.LoadInt64(&inFlightCounter))
	}

	cancelWorker()

	if err := eventBus.Close(); err != nil {
		log.Warn("error closing event bus", "error", err)
	}

	log.Info("worker stopped")
	return nil
}

// registerRoutes registers the worker's HTTP surface: health, readiness,
// metrics, and a lookup of a cached result by file fingerprint.
func registerRoutes(mux *http.ServeMux, m *metrics.Metrics, resultCache cache.Cache, version string) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !serverReady.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /v1/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": version})
	})

	mux.HandleFunc("GET /v1/results/{hash}", func(w http.ResponseWriter, r *http.Request) {
		hash := r.PathValue("hash")
		result, found, err := resultCache.Get(hash)
		if err != nil {
			apperrors.WriteError(w, err)
			return
		}
		if !found {
			apperrors.WriteError(w, apperrors.New(apperrors.CodeFileMissing, "no cached result for this hash"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})

	mux.Handle("GET /metrics", metrics.HTTPMiddleware(m, m.Handler()))
}

func recoveryMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered in HTTP handler", "error", err, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", wrapped.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func inFlightMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&inFlightCounter, 1)
		defer atomic.AddInt64(&inFlightCounter, -1)
		next.ServeHTTP(w, r)
	})
}

func drainInFlight(timeout time.Duration, log *logger.Logger) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		count := atomic.LoadInt64(&inFlightCounter)
		if count == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ticker.C:
			log.Info("draining in-flight requests", "remaining", count)
		default:
			time.Sleep(100 * time.Millisecond)
		}
	}
}
