package monitoring

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler marshals HTTP in and out of the monitoring and performance
// services. Every response uses the {success, data|error, timestamp}
// envelope.
type Handler struct {
	svc *Service
	opt *Optimizer
}

func NewHandler(svc *Service, opt *Optimizer) *Handler {
	return &Handler{svc: svc, opt: opt}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/monitoring/dashboard", h.dashboard)
	r.Get("/monitoring/health", h.health)
	r.Get("/monitoring/alerts", h.alerts)
	r.Post("/monitoring/alerts/{id}/resolve", h.resolveAlert)
	r.Post("/monitoring/metrics", h.recordMetric)
	r.Get("/monitoring/analytics", h.analytics)
	r.Get("/monitoring/history", h.history)
	r.Get("/monitoring/system", h.system)
	r.Get("/performance/analyze", h.analyze)
	r.Post("/performance/optimize/{id}", h.optimize)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, h.svc.DashboardData())
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	health := h.svc.HealthStatus()
	writeEnvelope(w, StatusCode(health.Status), health)
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	includeResolved, _ := strconv.ParseBool(r.URL.Query().Get("includeResolved"))
	writeEnvelope(w, http.StatusOK, h.svc.Alerts(includeResolved))
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.ResolveAlert(id); err != nil {
		writeEnvelopeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, map[string]string{"resolved": id})
}

func (h *Handler) recordMetric(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string  `json:"name"`
		Category   string  `json:"category"`
		DurationMs float64 `json:"durationMs"`
		Success    bool    `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelopeErr(w, http.StatusBadRequest, "invalid metric payload")
		return
	}
	h.svc.RecordMetric(Metric{
		Name:     body.Name,
		Category: body.Category,
		Duration: time.Duration(body.DurationMs * float64(time.Millisecond)),
		Success:  body.Success,
	})
	writeEnvelope(w, http.StatusOK, map[string]bool{"recorded": true})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, h.svc.Analytics(queryDuration(r, time.Hour)))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, h.svc.PerformanceHistory(queryDuration(r, time.Hour)))
}

func (h *Handler) system(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, h.svc.SystemMetrics())
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, h.opt.AnalyzePerformance())
}

func (h *Handler) optimize(w http.ResponseWriter, r *http.Request) {
	info, err := h.opt.ApplyOptimization(chi.URLParam(r, "id"))
	if err != nil {
		writeEnvelopeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, info)
}

func queryDuration(r *http.Request, fallback time.Duration) time.Duration {
	if v := r.URL.Query().Get("duration"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeEnvelopeErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
