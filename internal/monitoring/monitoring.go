// Package monitoring tracks extraction metrics in a sliding in-memory window
// and derives health, alerts, and analytics from them. The service and the
// optimizer are plain objects constructed at process start and injected into
// handlers; nothing here is a process-wide singleton.
package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// StatusCode maps a health status to its HTTP response code.
func StatusCode(s Status) int {
	switch s {
	case StatusHealthy:
		return http.StatusOK
	case StatusDegraded:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

// Metric is one recorded observation, typically one extraction request.
type Metric struct {
	Name      string        `json:"name"`
	Category  string        `json:"category"`
	Duration  time.Duration `json:"durationMs"`
	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
}

// Alert is raised when a threshold is crossed and stays visible until
// resolved.
type Alert struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Options carries the alerting thresholds.
type Options struct {
	Window         time.Duration
	AlertErrorRate float64
	AlertLatency   time.Duration
	MinSamples     int
	Now            func() time.Time // test hook
}

type Service struct {
	mu      sync.RWMutex
	opts    Options
	metrics []Metric
	alerts  []Alert
	started time.Time

	totalRequests int64
	totalErrors   int64
}

func NewService(opts Options) *Service {
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts, started: opts.Now()}
}

// RecordMetric appends one observation, prunes the window, and evaluates the
// alert thresholds.
func (s *Service) RecordMetric(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Timestamp.IsZero() {
		m.Timestamp = s.opts.Now()
	}
	s.metrics = append(s.metrics, m)
	s.totalRequests++
	if !m.Success {
		s.totalErrors++
	}
	s.pruneLocked()
	s.evaluateLocked()
}

// Sweep discards metrics that fell out of the window. RecordMetric prunes on
// every write, so this only matters when traffic stops entirely.
func (s *Service) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

func (s *Service) pruneLocked() {
	cutoff := s.opts.Now().Add(-s.opts.Window)
	i := 0
	for i < len(s.metrics) && s.metrics[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.metrics = append(s.metrics[:0:0], s.metrics[i:]...)
	}
}

func (s *Service) evaluateLocked() {
	n := len(s.metrics)
	if n < s.opts.MinSamples {
		return
	}

	errors := 0
	var total time.Duration
	for _, m := range s.metrics {
		if !m.Success {
			errors++
		}
		total += m.Duration
	}

	rate := float64(errors) / float64(n)
	if s.opts.AlertErrorRate > 0 && rate >= s.opts.AlertErrorRate {
		s.raiseLocked("error-rate", "critical",
			fmt.Sprintf("error rate %.0f%% over the last window", rate*100))
	}
	avg := total / time.Duration(n)
	if s.opts.AlertLatency > 0 && avg >= s.opts.AlertLatency {
		s.raiseLocked("latency", "warning",
			fmt.Sprintf("average extraction latency %s over the last window", avg.Round(time.Millisecond)))
	}
}

// raiseLocked deduplicates against the unresolved alert of the same name.
func (s *Service) raiseLocked(name, severity, message string) {
	for i := range s.alerts {
		if !s.alerts[i].Resolved && s.alerts[i].Name == name {
			s.alerts[i].Message = message
			return
		}
	}
	s.alerts = append(s.alerts, Alert{
		ID:        uuid.NewString(),
		Name:      name,
		Severity:  severity,
		Message:   message,
		CreatedAt: s.opts.Now(),
	})
}

// Alerts returns alerts newest first, optionally including resolved ones.
func (s *Service) Alerts(includeResolved bool) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Resolved && !includeResolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ResolveAlert marks one alert resolved.
func (s *Service) ResolveAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			if s.alerts[i].Resolved {
				return fmt.Errorf("alert %s already resolved", id)
			}
			now := s.opts.Now()
			s.alerts[i].Resolved = true
			s.alerts[i].ResolvedAt = &now
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", id)
}

// Health is the overall service health summary.
type Health struct {
	Status         Status  `json:"status"`
	WindowRequests int     `json:"windowRequests"`
	WindowErrors   int     `json:"windowErrors"`
	ErrorRate      float64 `json:"errorRate"`
	ActiveAlerts   int     `json:"activeAlerts"`
	UptimeSeconds  int64   `json:"uptimeSeconds"`
}

func (s *Service) HealthStatus() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	errors := 0
	for _, m := range s.metrics {
		if !m.Success {
			errors++
		}
	}

	active := 0
	critical := 0
	for _, a := range s.alerts {
		if a.Resolved {
			continue
		}
		active++
		if a.Severity == "critical" {
			critical++
		}
	}

	h := Health{
		Status:         StatusHealthy,
		WindowRequests: len(s.metrics),
		WindowErrors:   errors,
		ActiveAlerts:   active,
		UptimeSeconds:  int64(s.opts.Now().Sub(s.started).Seconds()),
	}
	if len(s.metrics) > 0 {
		h.ErrorRate = float64(errors) / float64(len(s.metrics))
	}

	switch {
	case critical > 0 && len(s.metrics) >= s.opts.MinSamples && h.ErrorRate >= 0.5:
		h.Status = StatusUnhealthy
	case active > 0:
		h.Status = StatusDegraded
	}
	return h
}

// CategoryStats aggregates one category's metrics over a window.
type CategoryStats struct {
	Category     string  `json:"category"`
	Requests     int     `json:"requests"`
	Errors       int     `json:"errors"`
	SuccessRate  float64 `json:"successRate"`
	AvgLatencyMs int64   `json:"avgLatencyMs"`
	P95LatencyMs int64   `json:"p95LatencyMs"`
}

// Analytics aggregates per category over the given duration (capped at the
// retention window).
func (s *Service) Analytics(d time.Duration) []CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.opts.Now().Add(-d)
	byCat := map[string][]Metric{}
	for _, m := range s.metrics {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		byCat[m.Category] = append(byCat[m.Category], m)
	}

	out := make([]CategoryStats, 0, len(byCat))
	for cat, ms := range byCat {
		stats := CategoryStats{Category: cat, Requests: len(ms)}
		durs := make([]time.Duration, 0, len(ms))
		var total time.Duration
		for _, m := range ms {
			if !m.Success {
				stats.Errors++
			}
			total += m.Duration
			durs = append(durs, m.Duration)
		}
		stats.SuccessRate = float64(len(ms)-stats.Errors) / float64(len(ms))
		stats.AvgLatencyMs = (total / time.Duration(len(ms))).Milliseconds()
		sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
		stats.P95LatencyMs = durs[(len(durs)*95)/100].Milliseconds()
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// HistorySample is one minute-bucket of the performance history.
type HistorySample struct {
	Start        time.Time `json:"start"`
	Requests     int       `json:"requests"`
	Errors       int       `json:"errors"`
	AvgLatencyMs int64     `json:"avgLatencyMs"`
}

// PerformanceHistory buckets the window into per-minute samples, oldest
// first.
func (s *Service) PerformanceHistory(d time.Duration) []HistorySample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.opts.Now().Add(-d).Truncate(time.Minute)
	buckets := map[time.Time]*HistorySample{}
	totals := map[time.Time]time.Duration{}

	for _, m := range s.metrics {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		key := m.Timestamp.Truncate(time.Minute)
		b, ok := buckets[key]
		if !ok {
			b = &HistorySample{Start: key}
			buckets[key] = b
		}
		b.Requests++
		if !m.Success {
			b.Errors++
		}
		totals[key] += m.Duration
	}

	out := make([]HistorySample, 0, len(buckets))
	for key, b := range buckets {
		b.AvgLatencyMs = (totals[key] / time.Duration(b.Requests)).Milliseconds()
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// SystemMetrics reports process-level counters.
type SystemMetrics struct {
	Goroutines    int    `json:"goroutines"`
	MemAllocMB    uint64 `json:"memAllocMB"`
	MemSysMB      uint64 `json:"memSysMB"`
	TotalRequests int64  `json:"totalRequests"`
	TotalErrors   int64  `json:"totalErrors"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Service) SystemMetrics() SystemMetrics {
	s.mu.RLock()
	total, errs := s.totalRequests, s.totalErrors
	started := s.started
	s.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemAllocMB:    m.Alloc / (1 << 20),
		MemSysMB:      m.Sys / (1 << 20),
		TotalRequests: total,
		TotalErrors:   errs,
		UptimeSeconds: int64(s.opts.Now().Sub(started).Seconds()),
	}
}

// Dashboard bundles everything the monitoring UI shows in one call.
type Dashboard struct {
	Overall    Health          `json:"overall"`
	System     SystemMetrics   `json:"system"`
	Alerts     []Alert         `json:"alerts"`
	Categories []CategoryStats `json:"categories"`
}

func (s *Service) DashboardData() Dashboard {
	return Dashboard{
		Overall:    s.HealthStatus(),
		System:     s.SystemMetrics(),
		Alerts:     s.Alerts(false),
		Categories: s.Analytics(s.opts.Window),
	}
}
