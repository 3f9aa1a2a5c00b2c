package views

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xreach/acp/internal/alert"
	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/series"
	"github.com/xreach/acp/pkg/models"
)

// AlertsSnapshot lists the alerts of the latest poll and the history.
type AlertsSnapshot struct {
	Meta
	CPU      float64              `json:"cpu"`
	Memory   float64              `json:"memory"`
	Warning  float64              `json:"warning_threshold"`
	Critical float64              `json:"critical_threshold"`
	Active   []models.AlertRecord `json:"active"`
	History  []models.AlertRecord `json:"history"`
}

// Alerts evaluates CPU and memory on every poll. Every classified reading
// is appended to the history and forwarded to the alerter.
type Alerts struct {
	status
	api       *apiclient.Client
	evaluator alert.Evaluator
	history   *alert.History
	alerter   alert.Alerter
	logger    *slog.Logger
	clock     func() time.Time

	mu     sync.RWMutex
	cpu    float64
	mem    float64
	active []models.AlertRecord
}

// NewAlerts creates the alerts page. A nil alerter disables forwarding.
func NewAlerts(api *apiclient.Client, interval time.Duration, ev alert.Evaluator, history *alert.History, alerter alert.Alerter, logger *slog.Logger) *Alerts {
	if history == nil {
		history = alert.NewHistory(alert.DefaultHistorySize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerts{
		status:    newStatus(PageAlerts, interval),
		api:       api,
		evaluator: ev,
		history:   history,
		alerter:   alerter,
		logger:    logger,
		clock:     time.Now,
		active:    []models.AlertRecord{},
	}
}

func (a *Alerts) Refresh(ctx context.Context) error {
	m, err := a.api.Metrics(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m = models.Metrics{}
	}

	cpu, mem := series.CPU(m), series.Memory(m)
	records := a.evaluator.Evaluate(cpu, mem, a.clock())

	a.mu.Lock()
	a.cpu, a.mem = cpu, mem
	a.active = append([]models.AlertRecord{}, records...)
	a.mu.Unlock()
	a.history.Append(records...)

	if a.alerter != nil {
		for _, r := range records {
			ev := alert.EventFromRecord(r, a.evaluator.Threshold(r.Severity))
			if sendErr := a.alerter.Send(ctx, ev); sendErr != nil {
				a.logger.Warn("alert delivery failed", "metric", r.Metric, "error", sendErr)
			}
		}
	}

	a.record(err)
	return err
}

func (a *Alerts) Snapshot() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AlertsSnapshot{
		Meta:     a.meta(),
		CPU:      a.cpu,
		Memory:   a.mem,
		Warning:  a.evaluator.Warning,
		Critical: a.evaluator.Critical,
		Active:   append([]models.AlertRecord{}, a.active...),
		History:  a.history.Records(),
	}
}
