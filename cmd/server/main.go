package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mseiller/test-buddy-extract/internal/config"
	"github.com/mseiller/test-buddy-extract/internal/extract"
	imageextractor "github.com/mseiller/test-buddy-extract/internal/extractors/image"
	officeextractor "github.com/mseiller/test-buddy-extract/internal/extractors/office"
	pdfextractor "github.com/mseiller/test-buddy-extract/internal/extractors/pdf"
	plaintextextractor "github.com/mseiller/test-buddy-extract/internal/extractors/plaintext"
	spreadsheetextractor "github.com/mseiller/test-buddy-extract/internal/extractors/spreadsheet"
	"github.com/mseiller/test-buddy-extract/internal/monitoring"
	"github.com/mseiller/test-buddy-extract/internal/vision"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		logger.Warn().Msg("OPENROUTER_API_KEY not set; image OCR will fail")
	}

	srv := newServer(cfg, logger)

	go func() {
		t := time.NewTicker(cfg.MonitoringSweepTick)
		defer t.Stop()
		for range t.C {
			srv.monitor.Sweep()
		}
	}()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info().
			Str("addr", httpSrv.Addr).
			Int64("maxConcurrent", cfg.MaxConcurrentRequests).
			Msg("extraction service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// server owns the wired dependencies. Everything is constructed once here and
// injected; there are no package-level singletons.
type server struct {
	cfg    config.Config
	logger zerolog.Logger

	router     *extract.Router
	monitor    *monitoring.Service
	optimizer  *monitoring.Optimizer
	requestSem *semaphore.Weighted
	active     atomic.Int64

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// limitedOCR caps how many OCR calls run at once. The provider enforces its
// own rate limits, so we stay under them rather than retrying 429s.
type limitedOCR struct {
	sem    *semaphore.Weighted
	client imageextractor.OCRClient
}

func (l *limitedOCR) ExtractText(ctx context.Context, imageDataURL string) (string, *extract.Error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", extract.NewError(extract.KindUpstreamUnavailable, "OCR request cancelled")
	}
	defer l.sem.Release(1)
	return l.client.ExtractText(ctx, imageDataURL)
}

func newServer(cfg config.Config, logger zerolog.Logger) *server {
	monitor := monitoring.NewService(monitoring.Options{
		Window:         cfg.MetricsWindow,
		AlertErrorRate: cfg.AlertErrorRate,
		AlertLatency:   cfg.AlertLatency,
		MinSamples:     cfg.AlertMinSamples,
	})

	ocrClient := vision.NewClient(
		cfg.OpenRouterAPIKey,
		cfg.OCRModel,
		cfg.OCRMaxTokens,
		cfg.OCRTemperature,
		cfg.OCRRequestTimeout,
	)

	ocrSem := semaphore.NewWeighted(cfg.MaxOCRConcurrent)

	registry := extract.NewRegistry()
	registry.Register(plaintextextractor.New())
	registry.Register(spreadsheetextractor.New())
	registry.Register(officeextractor.New())
	registry.Register(imageextractor.New(&limitedOCR{sem: ocrSem, client: ocrClient}))
	registry.Register(pdfextractor.New(pdfextractor.NewPrimaryParser(), pdfextractor.NewFallbackParser()))

	validator := extract.NewValidator(extract.Limits{
		PDFBytes:         cfg.MaxPDFBytes,
		ImageBytes:       cfg.MaxImageBytes,
		OfficeBytes:      cfg.MaxOfficeBytes,
		SpreadsheetBytes: cfg.MaxSpreadsheetBytes,
		TextBytes:        cfg.MaxTextBytes,
	})

	return &server{
		cfg:        cfg,
		logger:     logger,
		router:     extract.NewRouter(registry, validator),
		monitor:    monitor,
		optimizer:  monitoring.NewOptimizer(monitor),
		requestSem: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		limiters:   make(map[string]*rate.Limiter),
	}
}

func (s *server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRecovery, s.withLogging)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(s.withRateLimit, s.withConcurrencyLimit)
		r.Post("/extract", s.handleExtract)
	})

	monitoring.NewHandler(s.monitor, s.optimizer).Register(r)

	return r
}

// ---------- Handlers ----------

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	file, uerr := extract.ReadUpload(r, "file", s.cfg.MaxUploadBytes)
	if uerr != nil {
		s.record("", start, false)
		writeExtractError(w, uerr)
		return
	}

	res, category, xerr := s.router.Route(r.Context(), file)
	if xerr != nil {
		s.record(string(category), start, false)
		writeExtractError(w, xerr)
		return
	}

	s.record(string(category), start, true)
	writeExtractSuccess(w, category, file, res)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.monitor.HealthStatus()

	// High in-flight load degrades health before the window metrics catch up.
	load := float64(s.active.Load()) / float64(s.cfg.MaxConcurrentRequests)
	if health.Status == monitoring.StatusHealthy && load >= s.cfg.HealthDegradeRatio {
		health.Status = monitoring.StatusDegraded
	}

	writeJSON(w, monitoring.StatusCode(health.Status), map[string]any{
		"status":         health.Status,
		"uptime":         health.UptimeSeconds,
		"activeRequests": s.active.Load(),
		"errorRate":      health.ErrorRate,
		"activeAlerts":   health.ActiveAlerts,
		"version":        "1.0.0",
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"analytics": s.monitor.Analytics(s.cfg.MetricsWindow),
		"system":    s.monitor.SystemMetrics(),
	})
}

func (s *server) record(category string, start time.Time, success bool) {
	s.monitor.RecordMetric(monitoring.Metric{
		Name:     "extract",
		Category: category,
		Duration: time.Since(start),
		Success:  success,
	})
}

// ---------- Response shapes ----------

// writeExtractSuccess emits the category-specific success body: the PDF shape
// carries pages/info and names the method only when the fallback ran; the
// image shape echoes the file identity for the front end.
func writeExtractSuccess(w http.ResponseWriter, category extract.Category, f extract.File, res extract.Result) {
	switch category {
	case extract.CategoryPDF:
		body := map[string]any{
			"text":  res.Text,
			"pages": res.PageCount,
		}
		if len(res.Info) > 0 {
			body["info"] = res.Info
		}
		if res.Method == extract.MethodFallback {
			body["method"] = "page-scan"
		}
		writeJSON(w, http.StatusOK, body)
	case extract.CategoryImage:
		writeJSON(w, http.StatusOK, map[string]any{
			"text":     res.Text,
			"fileName": f.Name,
			"fileSize": f.Size,
			"success":  true,
		})
	default:
		body := map[string]any{
			"text":    res.Text,
			"success": true,
		}
		if len(res.Metadata) > 0 {
			body["metadata"] = res.Metadata
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeExtractError(w http.ResponseWriter, e *extract.Error) {
	body := map[string]any{"error": e.Message}
	if e.Pages > 0 {
		body["pages"] = e.Pages
	}
	if e.Method == extract.MethodFallback {
		body["method"] = "page-scan"
	}
	if e.Original != "" {
		body["originalError"] = e.Original
	}
	if e.Suggestion != "" {
		body["suggestion"] = e.Suggestion
	}
	writeJSON(w, e.HTTPStatus, body)
}

// ---------- Middleware ----------

func (s *server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Msg("handler panic")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": "Internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := &wrapWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("reqId", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *server) withConcurrencyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.requestSem.Acquire(r.Context(), 1); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": "Service at capacity",
			})
			return
		}
		s.active.Add(1)
		defer func() {
			s.active.Add(-1)
			s.requestSem.Release(1)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": "Rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) limiterFor(ip string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	if l, ok := s.limiters[ip]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(s.cfg.RateLimitEvery), s.cfg.RateLimitBurst)
	s.limiters[ip] = l
	return l
}

// ---------- Helpers ----------

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = jsonEncode(w, v)
}
