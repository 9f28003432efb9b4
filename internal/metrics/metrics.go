// Package metrics provides Prometheus-compatible metrics for the complexity
// engine worker.
package metrics

import (
	"runtime"
	"sync"
	"time"

	apperrors "github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

// Metrics holds every counter, gauge, and histogram the worker exposes.
type Metrics struct {
	AnalysisOK            *Counter
	AnalysisFailed        *CounterVec // labels: code
	RenderFailed          *Counter
	UploadFailed          *Counter
	CacheHits             *Counter
	CacheMisses           *Counter
	SerrilhaUnknownSymbol *Counter
	AnalysisDuration      *Histogram

	BusEventsPublished *CounterVec // labels: topic
	BusEventLatency    *HistogramVec
	BusErrors          *CounterVec // labels: topic

	HTTPRequests         *CounterVec // labels: method, path, status
	HTTPDuration         *HistogramVec
	HTTPRequestsInFlight *Gauge
	HTTPRequestSize      *HistogramVec

	GoroutineCount *Gauge
	MemoryUsage    *Gauge
	Uptime         *Gauge

	startTime  time.Time
	stopSystem chan struct{}
	mu         sync.RWMutex
}

// New creates a Metrics instance with all series registered and starts the
// background system-metrics collector.
func New() *Metrics {
	m := &Metrics{
		AnalysisOK:            NewCounter("facas_analysis_ok_total", "Documents analyzed and scored successfully", nil),
		AnalysisFailed:        NewCounterVec("facas_analysis_failed_total", "Documents that failed analysis", []string{"code"}),
		RenderFailed:          NewCounter("facas_render_failed_total", "Preview renders that failed", nil),
		UploadFailed:          NewCounter("facas_upload_failed_total", "Preview uploads that failed", nil),
		CacheHits:             NewCounter("facas_cache_hits_total", "Analysis results served from the result cache", nil),
		CacheMisses:           NewCounter("facas_cache_misses_total", "Analysis requests that missed the result cache", nil),
		SerrilhaUnknownSymbol: NewCounter("facas_serrilha_unknown_symbol_total", "Serrilha markers encountered with no matching recognizer rule", nil),
		AnalysisDuration:      NewHistogram("facas_analysis_duration_ms", "End-to-end analysis duration in milliseconds", []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}),

		BusEventsPublished: NewCounterVec("facas_bus_events_published_total", "Events published to the bus", []string{"topic"}),
		BusEventLatency:    NewHistogramVec("facas_bus_event_latency_ms", "Bus publish latency in milliseconds", []string{"topic"}, nil),
		BusErrors:          NewCounterVec("facas_bus_errors_total", "Bus publish errors", []string{"topic"}),

		HTTPRequests:         NewCounterVec("facas_http_requests_total", "HTTP requests served", []string{"method", "path", "status"}),
		HTTPDuration:         NewHistogramVec("facas_http_duration_seconds", "HTTP request duration in seconds", []string{"method", "path"}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}),
		HTTPRequestsInFlight: NewGauge("facas_http_requests_in_flight", "HTTP requests currently being served", nil),
		HTTPRequestSize:      NewHistogramVec("facas_http_request_size_bytes", "HTTP request body size in bytes", []string{"method", "path"}, []float64{100, 1000, 10000, 100000, 1000000}),

		GoroutineCount: NewGauge("facas_goroutines", "Number of running goroutines", nil),
		MemoryUsage:    NewGauge("facas_memory_bytes", "Allocated heap memory in bytes", nil),
		Uptime:         NewGauge("facas_uptime_seconds", "Seconds since the process started", nil),

		startTime:  time.Now(),
		stopSystem: make(chan struct{}),
	}

	go m.collectSystemMetrics()
	return m
}

// collectSystemMetrics updates goroutine/memory/uptime gauges every 15s.
func (m *Metrics) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSystem:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			m.GoroutineCount.Set(float64(runtime.NumGoroutine()))
			m.MemoryUsage.Set(float64(ms.Alloc))
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordAnalysis records the outcome of one document analysis.
func (m *Metrics) RecordAnalysis(durationMs float64, err error) {
	m.AnalysisDuration.Observe(durationMs)
	if err == nil {
		m.AnalysisOK.Inc()
		return
	}
	m.AnalysisFailed.WithLabels(errorCode(err)).Inc()
}

// RecordRenderFailure records a failed preview render.
func (m *Metrics) RecordRenderFailure() {
	m.RenderFailed.Inc()
}

// RecordUploadFailure records a failed preview upload.
func (m *Metrics) RecordUploadFailure() {
	m.UploadFailed.Inc()
}

// RecordCacheHit records a result-cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a result-cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordSerrilhaUnknownSymbol records a serrilha marker the recognizer
// couldn't classify.
func (m *Metrics) RecordSerrilhaUnknownSymbol() {
	m.SerrilhaUnknownSymbol.Inc()
}

// RecordBusPublish implements bus.MetricsRecorder.
func (m *Metrics) RecordBusPublish(topic string, latencyMs int64, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	m.BusEventLatency.WithLabels(topic).Observe(float64(latencyMs))
	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordHTTP records one served HTTP request.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64, sizeBytes int64) {
	statusLabel := statusCode(status)
	normalized := normalizePath(path)
	m.HTTPRequests.WithLabels(method, normalized, statusLabel).Inc()
	m.HTTPDuration.WithLabels(method, normalized).Observe(durationSeconds)
	if sizeBytes > 0 {
		m.HTTPRequestSize.WithLabels(method, normalized).Observe(float64(sizeBytes))
	}
}

// errorCode extracts the AppError code from err, falling back to "unknown"
// for errors that don't carry one.
func errorCode(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Code
	}
	return "unknown"
}

// Reset zeroes the six scalar counters (AnalysisOK, RenderFailed,
// UploadFailed, CacheHits, CacheMisses, SerrilhaUnknownSymbol); counter
// vectors, histograms and gauges are left as they are. Used between test cases.
func (m *Metrics) Reset() {
	m.AnalysisOK.Reset()
	m.RenderFailed.Reset()
	m.UploadFailed.Reset()
	m.CacheHits.Reset()
	m.CacheMisses.Reset()
	m.SerrilhaUnknownSymbol.Reset()
}

// Close stops the background system-metrics collector.
func (m *Metrics) Close() error {
	select {
	case <-m.stopSystem:
	default:
		close(m.stopSystem)
	}
	return nil
}
