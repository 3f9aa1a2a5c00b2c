package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/xreach/acp/pkg/models"
)

// Default thresholds, in percent.
const (
	DefaultWarning     = 70.0
	DefaultCritical    = 90.0
	DefaultHistorySize = 10
)

// Metric names reported in alert records.
const (
	MetricCPU    = "cpu"
	MetricMemory = "memory"
)

// Evaluator classifies CPU and memory readings against two thresholds.
// Comparisons are strict: a value equal to a threshold does not trigger it.
type Evaluator struct {
	Warning  float64
	Critical float64
}

// NewEvaluator returns an evaluator, substituting defaults for unset values.
func NewEvaluator(warning, critical float64) Evaluator {
	if warning <= 0 {
		warning = DefaultWarning
	}
	if critical <= 0 {
		critical = DefaultCritical
	}
	return Evaluator{Warning: warning, Critical: critical}
}

// Classify returns the severity for one reading, or "" when below both
// thresholds.
func (e Evaluator) Classify(v float64) string {
	switch {
	case v > e.Critical:
		return models.SeverityCritical
	case v > e.Warning:
		return models.SeverityWarning
	default:
		return ""
	}
}

// Threshold returns the threshold that a severity corresponds to.
func (e Evaluator) Threshold(severity string) float64 {
	if severity == models.SeverityCritical {
		return e.Critical
	}
	return e.Warning
}

// Evaluate returns zero, one or two records, CPU first.
func (e Evaluator) Evaluate(cpu, mem float64, now time.Time) []models.AlertRecord {
	var out []models.AlertRecord
	for _, m := range []struct {
		name  string
		label string
		value float64
	}{
		{MetricCPU, "CPU", cpu},
		{MetricMemory, "Memory", mem},
	} {
		sev := e.Classify(m.value)
		if sev == "" {
			continue
		}
		prefix := "High"
		if sev == models.SeverityCritical {
			prefix = "Critical"
		}
		out = append(out, models.AlertRecord{
			Metric:    m.name,
			Message:   fmt.Sprintf("%s %s usage: %.1f%%", prefix, m.label, m.value),
			Severity:  sev,
			Value:     m.value,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// History keeps the most recent alert records. It does not deduplicate:
// a condition that persists across polls adds an entry each time.
type History struct {
	mu      sync.Mutex
	limit   int
	records []models.AlertRecord
}

// NewHistory creates a history capped at limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Append adds records and drops the oldest beyond the cap.
func (h *History) Append(records ...models.AlertRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, records...)
	if n := len(h.records) - h.limit; n > 0 {
		h.records = append([]models.AlertRecord(nil), h.records[n:]...)
	}
}

// Records returns a copy, oldest first.
func (h *History) Records() []models.AlertRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.AlertRecord{}, h.records...)
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
