// Package worker implements the analysis pipeline: it consumes file-analysis
// requests off the event bus, runs the full geometry/scoring pipeline once
// per distinct file fingerprint, and publishes one domain.Result per
// request. It generalizes the teacher's index.Pipeline (request in, staged
// processing, event out) from code-chunk indexing to DXF complexity
// scoring.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/facasdxf/complexity-engine/internal/bus"
	"github.com/facasdxf/complexity-engine/internal/cache"
	"github.com/facasdxf/complexity-engine/internal/cad"
	"github.com/facasdxf/complexity-engine/internal/config"
	"github.com/facasdxf/complexity-engine/internal/corteseco"
	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/geometry"
	"github.com/facasdxf/complexity-engine/internal/metrics"
	apperrors "github.com/facasdxf/complexity-engine/internal/pkg/errors"
	"github.com/facasdxf/complexity-engine/internal/pkg/hash"
	"github.com/facasdxf/complexity-engine/internal/pkg/logger"
	"github.com/facasdxf/complexity-engine/internal/render"
	"github.com/facasdxf/complexity-engine/internal/scoring"
	"github.com/facasdxf/complexity-engine/internal/storage"
	"github.com/facasdxf/complexity-engine/internal/units"
)

// AnalysisRequest is the event payload published on the request topic.
type AnalysisRequest struct {
	FilePath string `json:"filePath"`
	OrderID  string `json:"orderId,omitempty"`
}

// Worker consumes AnalysisRequest events, runs the scoring pipeline and
// publishes one domain.Result per request. Concurrent requests are bounded
// by a weighted semaphore sized to config.Config.Parallelism; concurrent
// requests sharing a file fingerprint join a single in-flight computation
// instead of duplicating work.
type Worker struct {
	cfg      *config.Config
	compiled *config.Compiled
	bus      bus.Bus
	cache    cache.Cache
	storage  storage.Gateway
	metrics  *metrics.Metrics
	log      *logger.Logger

	sem *semaphore.Weighted

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// inflightCall is the join point for concurrent requests sharing a
// fingerprint: the first goroutine to see a fingerprint runs the pipeline
// and closes done; everyone else waits on it and reuses result/err.
type inflightCall struct {
	done   chan struct{}
	result domain.Result
	err    error
}

// New builds a Worker. log is tagged with the "worker" component.
func New(cfg *config.Config, compiled *config.Compiled, b bus.Bus, c cache.Cache, store storage.Gateway, m *metrics.Metrics, log *logger.Logger) *Worker {
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Worker{
		cfg:      cfg,
		compiled: compiled,
		bus:      b,
		cache:    c,
		storage:  store,
		metrics:  m,
		log:      log.WithComponent("worker"),
		sem:      semaphore.NewWeighted(int64(parallelism)),
		inflight: make(map[string]*inflightCall),
	}
}

// Start subscribes to the request queue. Handling of each message happens
// synchronously inside handleEvent, which Bus implementations already run
// on their own goroutines (see bus.MemoryBus.Publish, bus.RabbitBus.consumeTopic).
func (w *Worker) Start(ctx context.Context) error {
	return w.bus.Subscribe(ctx, w.cfg.RabbitQueueRequest, w.handleEvent)
}

// handleEvent decodes the request, runs the pipeline, and publishes the
// result. It returns nil (ack) for every outcome except a failure to
// publish (a failed cache write is only logged), since those call sites already log and the handler's
// return value only controls message redelivery.
func (w *Worker) handleEvent(ctx context.Context, event bus.Event) error {
	var req AnalysisRequest
	if err := unmarshalPayload(event.Payload, &req); err != nil {
		return w.publishFailure(ctx, event, req, apperrors.InvalidPayloadError(err.Error()))
	}

	if req.FilePath == "" {
		return w.publishFailure(ctx, event, req, apperrors.InvalidPayloadError("filePath is required"))
	}

	result, err := w.Analyze(ctx, req)
	if err != nil {
		return w.publishFailure(ctx, event, req, err)
	}
	return w.publish(ctx, event, result)
}

// Submit implements watchapi.Submitter: it publishes an analysis request
// for filePath onto the request topic, the same entry point a bus message
// from an external watcher would use. This lets a watcher hand a file
// straight to an in-process MemoryBus without round-tripping through a
// broker.
func (w *Worker) Submit(ctx context.Context, filePath, orderID string) error {
	return w.bus.Publish(ctx, w.cfg.RabbitQueueRequest, bus.Event{
		ID:      uuid.NewString(),
		Type:    bus.TopicAnalysisRequest,
		Source:  "watchapi",
		Payload: AnalysisRequest{FilePath: filePath, OrderID: orderID},
	})
}

// Analyze runs (or joins) the full pipeline for req and returns the
// resulting domain.Result. A cache hit short-circuits everything after
// fingerprinting unless config.Config.ReprocessSameHash is set.
func (w *Worker) Analyze(ctx context.Context, req AnalysisRequest) (domain.Result, error) {
	start := time.Now()

	fingerprint, err := w.fingerprint(req.FilePath)
	if err != nil {
		w.metrics.RecordAnalysis(float64(time.Since(start).Milliseconds()), err)
		return domain.Result{}, err
	}

	if !w.cfg.ReprocessSameHash {
		if cached, hit, err := w.cache.Get(fingerprint); err == nil && hit && w.cacheEntryValid(ctx, cached) {
			w.metrics.RecordCacheHit()
			result := stampResult(*cached, req)
			result.DurationMS = time.Since(start).Milliseconds()
			w.metrics.RecordAnalysis(float64(result.DurationMS), nil)
			return result, nil
		}
	}
	w.metrics.RecordCacheMiss()

	result, err := w.runOrJoin(ctx, fingerprint, req)
	result.DurationMS = time.Since(start).Milliseconds()
	w.metrics.RecordAnalysis(float64(result.DurationMS), err)
	return result, err
}

// cacheEntryValid applies the cache-hit validation a version bump or a
// corrupted upload record must defeat: the cached result's engine version
// must match the running one, and an uploaded (non-disabled) image must
// carry a non-empty checksum and a positive size and, when it names a
// remote object, that object must still exist there. Any failure here is
// treated as a cache miss by the caller.
func (w *Worker) cacheEntryValid(ctx context.Context, cached *domain.Result) bool {
	if cached.EngineVersion != w.cfg.Version {
		return false
	}

	img := cached.Image
	if img == nil || img.Status == domain.UploadStatusDisabled {
		return true
	}
	if img.Checksum == "" || img.SizeBytes <= 0 {
		return false
	}
	if img.Bucket != "" && img.Key != "" {
		exists, err := w.storage.Exists(ctx, img.Bucket, img.Key)
		if err != nil || !exists {
			return false
		}
	}
	return true
}

// runOrJoin dedups concurrent requests for the same fingerprint: the first
// caller runs process and stores the outcome; later callers block on done
// and reuse it, never running the pipeline twice for one file.
func (w *Worker) runOrJoin(ctx context.Context, fingerprint string, req AnalysisRequest) (domain.Result, error) {
	w.inflightMu.Lock()
	if call, ok := w.inflight[fingerprint]; ok {
		w.inflightMu.Unlock()
		select {
		case <-call.done:
			return stampResult(call.result, req), call.err
		case <-ctx.Done():
			return domain.Result{}, apperrors.TimeoutError("awaiting in-flight analysis")
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	w.inflight[fingerprint] = call
	w.inflightMu.Unlock()

	defer func() {
		w.inflightMu.Lock()
		delete(w.inflight, fingerprint)
		w.inflightMu.Unlock()
		close(call.done)
	}()

	if err := w.sem.Acquire(ctx, 1); err != nil {
		call.err = apperrors.TimeoutError("waiting for a free analysis slot")
		return domain.Result{}, call.err
	}
	defer w.sem.Release(1)

	result, err := w.process(ctx, fingerprint, req)
	call.result, call.err = result, err
	return result, err
}

// process is the pipeline proper: parse, preprocess, extract geometry,
// detect loops and intersections, recognize serrilha markers, detect
// corte-seco, score, render, upload, and cache. It is run at most once per
// fingerprint at a time.
func (w *Worker) process(ctx context.Context, fingerprint string, req AnalysisRequest) (domain.Result, error) {
	doc, err := w.parseWithTimeout(req.FilePath)
	if err != nil {
		return domain.Result{}, err
	}

	unitFactor, canonicalUnit, err := units.Resolve(doc.DeclaredUnit, w.cfg.DefaultUnit)
	if err != nil {
		return domain.Result{}, apperrors.InternalError("failed to resolve drawing unit", err)
	}

	pre := geometry.Preprocess(doc, w.compiled.ExtractTolerances, w.log)

	extractCfg := w.compiled.ExtractConfig
	extractCfg.UnitFactor = unitFactor
	extractCfg.SpecialMaterialLayerMapping = w.compiled.SpecialMaterialLayerMapping
	extracted := geometry.Extract(pre.Document, extractCfg)

	layerTypes := make(map[string]string, len(extracted.Layers))
	layerStats := make(map[string]domain.LayerStats, len(extracted.Layers))
	nativeByType := make(map[string]int)
	nativeTotal := 0
	for layer, acc := range extracted.Layers {
		layerTypes[layer] = acc.SemanticType
		layerStats[layer] = domain.LayerStats{
			Layer:        acc.Layer,
			SemanticType: acc.SemanticType,
			EntityCount:  acc.EntityCount,
			TotalLength:  acc.TotalLength,
			ClosedLoops:  acc.ClosedLoops,
		}
		nativeByType[acc.SemanticType] += acc.ClosedLoops
		nativeTotal += acc.ClosedLoops
	}

	gapTol := w.compiled.ExtractTolerances.GapTolerance
	snapTol := geometry.SnapTolerance(gapTol)
	detectedByType, detectedTotal, loopNote := geometry.DetectLoops(extracted.Segments, layerTypes, snapTol)
	closedByType, closedTotal := geometry.MergeLoopCounts(nativeByType, nativeTotal, detectedByType, detectedTotal)

	numIntersections := geometry.AnalyzeIntersections(extracted.Segments, gapTol)

	serrilhaSummary := w.compiled.Recognizer.Recognize(doc, doc.Inserts, doc.Texts, unitFactor)
	if serrilhaSummary.UnknownCount > 0 {
		w.metrics.RecordSerrilhaUnknownSymbol()
	}

	corteSecoSummary := corteseco.Detect(extracted.Segments, layerTypes, serrilhaSummary, w.cfg.CorteSeco)

	quality := pre.Quality
	quality.ClosedLoops = closedTotal
	quality.ClosedLoopsByType = closedByType
	quality.SpecialMaterials = extracted.SpecialMaterials
	if extracted.Extents.Area() > 0 {
		quality.ClosedLoopDensity = float64(closedTotal) / extracted.Extents.Area()
		quality.DelicateArcDensity = extracted.DelicateArcLength / extracted.Extents.Area()
	}
	quality.DelicateArcCount = extracted.DelicateArcCount
	quality.DelicateArcLength = extracted.DelicateArcLength
	if loopNote != "" {
		quality.Notes = append(quality.Notes, loopNote)
	}

	threePtRatio := 0.0
	if total := extracted.TotalCutLength + extracted.TotalFoldLength + extracted.TotalPerfLength + extracted.TotalThreePtLength; total > 0 {
		threePtRatio = extracted.TotalThreePtLength / total
	}

	m := domain.Metrics{
		UnitName:           canonicalUnit,
		Extents:            extracted.Extents,
		TotalCutLength:     extracted.TotalCutLength,
		TotalFoldLength:    extracted.TotalFoldLength,
		TotalPerfLength:    extracted.TotalPerfLength,
		TotalThreePtLength: extracted.TotalThreePtLength,
		ThreePtCutRatio:    threePtRatio,
		NumCurves:          extracted.NumCurves,
		NumNodes:           len(extracted.Segments),
		NumIntersections:   numIntersections,
		MinArcRadius:       extracted.MinArcRadius,
		EntityCounts:       extracted.EntityCounts,
		LayerStats:         layerStats,
		Quality:            quality,
		Serrilha:           serrilhaSummary,
		CorteSeco:          corteSecoSummary,
	}

	score, explanations := scoring.Score(m, w.cfg.Scoring)

	result := domain.Result{
		AnalysisID:    uuid.NewString(),
		TimestampUTC:  time.Now().UTC(),
		OrderID:       req.OrderID,
		FileName:      filepath.Base(req.FilePath),
		FileHash:      fingerprint,
		Metrics:       &m,
		Score:         &score,
		Explanations:  explanations,
		EngineVersion: w.cfg.Version,
		ShadowMode:    w.cfg.ShadowMode,
	}

	result.Image = w.renderAndUpload(ctx, fingerprint, extracted.Segments, layerTypes, score)

	if err := w.cache.Put(fingerprint, result); err != nil {
		w.log.Warn("failed to cache analysis result", "fingerprint", fingerprint, "error", err)
	}

	return result, nil
}

// renderAndUpload draws the preview and, when image storage is enabled,
// uploads it. Both stages are non-fatal: a failure here degrades the
// result's Image field but never fails the analysis.
func (w *Worker) renderAndUpload(ctx context.Context, fingerprint string, segments []geometry.Segment, layerTypes map[string]string, score float64) *domain.ImageMetadata {
	opts := w.compiled.RenderOptions
	opts.SafeName = hash.SafeStorageKey(fingerprint)
	opts.Score = score

	png, img, err := w.renderWithTimeout(segments, layerTypes, opts)
	if err != nil {
		w.log.Warn("preview render failed", "fingerprint", fingerprint, "error", err)
		w.metrics.RecordRenderFailure()
		return nil
	}

	if w.cfg.PersistLocalImageCopy {
		if err := w.persistLocalCopy(fingerprint, png); err != nil {
			w.log.Warn("failed to persist local image copy", "fingerprint", fingerprint, "error", err)
		}
	}

	if w.cfg.ImageStorage.Provider == "null" {
		img.Status = domain.UploadStatusDisabled
		return &img
	}

	uploadCtx, cancel := context.WithTimeout(ctx, w.compiled.UploadTimeout)
	defer cancel()

	key := w.cfg.ImageStorage.KeyPrefix + opts.SafeName + ".png"
	uploadResult, err := w.storage.Upload(uploadCtx, storage.UploadRequest{
		Bucket:        w.cfg.ImageStorage.Bucket,
		Key:           key,
		Body:          png,
		ContentType:   "image/png",
		SkipIfExists:  w.cfg.ImageStorage.SkipIfExists,
		UploadTimeout: w.compiled.UploadTimeout,
	})
	if err != nil {
		w.log.Warn("preview upload failed", "fingerprint", fingerprint, "error", err)
		w.metrics.RecordUploadFailure()
		img.Status = domain.UploadStatusFailed
		img.Message = err.Error()
		return &img
	}

	img.Bucket = w.cfg.ImageStorage.Bucket
	img.Key = key
	img.URI = uploadResult.URI
	img.PublicURL = uploadResult.PublicURL
	img.ETag = uploadResult.ETag
	img.Status = domain.UploadStatus(uploadResult.Status)
	img.Message = uploadResult.Message
	now := time.Now().UTC()
	img.UploadedAt = &now
	return &img
}

func (w *Worker) persistLocalCopy(fingerprint string, png []byte) error {
	if err := os.MkdirAll(w.cfg.OutputImageFolder, 0755); err != nil {
		return err
	}
	path := filepath.Join(w.cfg.OutputImageFolder, hash.SafeStorageKey(fingerprint)+".png")
	return os.WriteFile(path, png, 0644)
}

// fingerprint opens req's file and computes its content fingerprint,
// translating a missing file into apperrors.FileMissingError.
func (w *Worker) fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.FileMissingError(path)
		}
		return "", apperrors.InternalError("failed to open file for fingerprinting", err)
	}
	defer f.Close()
	return hash.Fingerprint(f)
}

// parseWithTimeout bounds cad.ParseFile (which has no context parameter of
// its own) to config.Compiled.ParseTimeout. On an unsupported-version
// error it makes one retry attempt via retryWithHeaderUpgrade before giving
// up; any other error is returned as-is.
func (w *Worker) parseWithTimeout(path string) (*cad.Document, error) {
	doc, err := w.parseFileWithTimeout(path)
	if err == nil || !apperrors.IsCode(err, apperrors.CodeUnsupportedCad) {
		return doc, err
	}

	if upgraded, upErr := w.retryWithHeaderUpgrade(path); upErr == nil {
		return upgraded, nil
	}
	return nil, err
}

func (w *Worker) parseFileWithTimeout(path string) (*cad.Document, error) {
	type outcome struct {
		doc *cad.Document
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		doc, err := cad.ParseFile(path)
		ch <- outcome{doc, err}
	}()

	select {
	case o := <-ch:
		return o.doc, o.err
	case <-time.After(w.compiled.ParseTimeout):
		return nil, apperrors.TimeoutError("parse")
	}
}

// retryWithHeaderUpgrade implements the one-shot header upgrade: on an
// unsupported CAD version, rewrite a literal AC1014 ($ACADVER for R14) to
// AC1015 (the oldest version cad.ParseFile accepts) and reparse the
// in-memory bytes once. A file that does not actually carry an AC1014
// header (some other unsupported version) is not retried.
func (w *Worker) retryWithHeaderUpgrade(path string) (*cad.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(data, []byte("AC1014")) {
		return nil, fmt.Errorf("no AC1014 header to upgrade")
	}
	upgraded := bytes.ReplaceAll(data, []byte("AC1014"), []byte("AC1015"))

	type outcome struct {
		doc *cad.Document
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		doc, err := cad.Parse(bytes.NewReader(upgraded))
		ch <- outcome{doc, err}
	}()

	select {
	case o := <-ch:
		return o.doc, o.err
	case <-time.After(w.compiled.ParseTimeout):
		return nil, apperrors.TimeoutError("parse")
	}
}

// renderWithTimeout bounds render.Render to config.Compiled.RenderTimeout.
func (w *Worker) renderWithTimeout(segments []geometry.Segment, layerTypes map[string]string, opts render.Options) ([]byte, domain.ImageMetadata, error) {
	type outcome struct {
		png []byte
		img domain.ImageMetadata
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		png, img, err := render.Render(segments, layerTypes, opts)
		ch <- outcome{png, img, err}
	}()

	select {
	case o := <-ch:
		return o.png, o.img, o.err
	case <-time.After(w.compiled.RenderTimeout):
		return nil, domain.ImageMetadata{}, apperrors.RenderFailureError("render timed out", nil)
	}
}

// publish sends a successful result to the result topic.
func (w *Worker) publish(ctx context.Context, event bus.Event, result domain.Result) error {
	return w.bus.Publish(ctx, w.cfg.RabbitQueueResult, bus.Event{
		ID:            uuid.NewString(),
		Type:          bus.TopicAnalysisResult,
		Source:        "complexity-engine-worker",
		Timestamp:     time.Now().Unix(),
		CorrelationID: event.CorrelationID,
		Payload:       result,
	})
}

// publishFailure publishes a failure Result (Score == nil, per
// domain.Result.IsFailure) carrying err's message as the sole explanation
// line, and logs the failure. Validation/parse/render-class errors never
// propagate back to the caller as a handler error; only a publish failure
// does, so the broker can redeliver the request.
func (w *Worker) publishFailure(ctx context.Context, event bus.Event, req AnalysisRequest, err error) error {
	w.log.Warn("analysis failed", "file", req.FilePath, "error", err)

	result := domain.Result{
		AnalysisID:    uuid.NewString(),
		TimestampUTC:  time.Now().UTC(),
		OrderID:       req.OrderID,
		FileName:      filepath.Base(req.FilePath),
		Explanations:  []string{err.Error()},
		EngineVersion: w.cfg.Version,
		ShadowMode:    w.cfg.ShadowMode,
	}
	return w.publish(ctx, event, result)
}

// stampResult copies a cached/joined result but rewrites the
// request-specific identity fields so a shared computation looks like a
// fresh analysis to each caller.
func stampResult(cached domain.Result, req AnalysisRequest) domain.Result {
	cached.AnalysisID = uuid.NewString()
	cached.TimestampUTC = time.Now().UTC()
	cached.OrderID = req.OrderID
	return cached
}

// unmarshalPayload decodes a bus.Event payload into target. MemoryBus hands
// the payload through unchanged (already the right type); Kafka/Rabbit JSON
// round-trip it through the wire, leaving a map[string]any that must be
// re-marshaled before it can be unmarshaled into target.
func unmarshalPayload(payload any, target any) error {
	if req, ok := payload.(AnalysisRequest); ok {
		*target.(*AnalysisRequest) = req
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return json.Unmarshal(data, target)
}
