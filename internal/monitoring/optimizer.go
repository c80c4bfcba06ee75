package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// StrategyInfo describes one canned optimization the operator can apply.
type StrategyInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
}

// Analysis is the output of a performance review: the current health plus the
// strategies recommended for the observed load shape.
type Analysis struct {
	Overall     Health          `json:"overall"`
	Categories  []CategoryStats `json:"categories"`
	Recommended []string        `json:"recommended"`
	Strategies  []StrategyInfo  `json:"strategies"`
}

// Optimizer proposes and toggles optimization strategies based on the
// metrics the Service has recorded. Applying a strategy flips a flag the
// serving layer reads; nothing is persisted.
type Optimizer struct {
	mu      sync.RWMutex
	svc     *Service
	applied map[string]bool
}

const (
	StrategyReduceOCRTokens    = "reduce-ocr-tokens"
	StrategyTightenRateLimit   = "tighten-rate-limit"
	StrategyLowerUploadCeiling = "lower-upload-ceiling"
)

var strategyDescriptions = map[string]string{
	StrategyReduceOCRTokens:    "Halve the OCR max-token budget to cut vision latency.",
	StrategyTightenRateLimit:   "Halve the per-IP rate limit burst to shed load.",
	StrategyLowerUploadCeiling: "Lower the per-category upload ceilings by 50%.",
}

func NewOptimizer(svc *Service) *Optimizer {
	return &Optimizer{svc: svc, applied: make(map[string]bool)}
}

// AnalyzePerformance reviews the recorded metrics and recommends strategies.
func (o *Optimizer) AnalyzePerformance() Analysis {
	o.mu.RLock()
	defer o.mu.RUnlock()

	health := o.svc.HealthStatus()
	cats := o.svc.Analytics(time.Hour)

	var recommended []string
	for _, c := range cats {
		if c.Category == "image" && c.AvgLatencyMs > 10_000 {
			recommended = append(recommended, StrategyReduceOCRTokens)
		}
		if c.SuccessRate < 0.5 && c.Requests >= o.svc.opts.MinSamples {
			recommended = append(recommended, StrategyLowerUploadCeiling)
		}
	}
	if health.Status != StatusHealthy {
		recommended = append(recommended, StrategyTightenRateLimit)
	}

	return Analysis{
		Overall:     health,
		Categories:  cats,
		Recommended: dedupe(recommended),
		Strategies:  o.strategiesLocked(),
	}
}

// ApplyOptimization toggles a strategy on and reports it.
func (o *Optimizer) ApplyOptimization(id string) (StrategyInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	desc, ok := strategyDescriptions[id]
	if !ok {
		return StrategyInfo{}, fmt.Errorf("unknown optimization strategy %q", id)
	}
	o.applied[id] = true
	return StrategyInfo{ID: id, Description: desc, Applied: true}, nil
}

// IsApplied reports whether a strategy is currently active.
func (o *Optimizer) IsApplied(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.applied[id]
}

func (o *Optimizer) strategiesLocked() []StrategyInfo {
	out := make([]StrategyInfo, 0, len(strategyDescriptions))
	for _, id := range []string{StrategyReduceOCRTokens, StrategyTightenRateLimit, StrategyLowerUploadCeiling} {
		out = append(out, StrategyInfo{ID: id, Description: strategyDescriptions[id], Applied: o.applied[id]})
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
