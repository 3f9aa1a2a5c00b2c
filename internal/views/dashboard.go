package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/series"
	"github.com/xreach/acp/pkg/models"
)

// DashboardSnapshot is the overview page: health, current metrics, gauges
// and the rolling chart history.
type DashboardSnapshot struct {
	Meta
	Health     models.HealthStatus       `json:"health"`
	Metrics    map[string]any            `json:"metrics"`
	Containers []models.ContainerMetrics `json:"containers"`
	Points     []series.Point            `json:"points"`
	CPU        series.GaugeReading       `json:"cpu"`
	Memory     series.GaugeReading       `json:"memory"`
	History    []series.Sample           `json:"history"`
}

// Dashboard polls /api/metrics/json and /api/health.
type Dashboard struct {
	status
	api    *apiclient.Client
	window *series.Window
	clock  func() time.Time

	mu      sync.RWMutex
	health  models.HealthStatus
	metrics models.Metrics
}

// NewDashboard creates the dashboard page.
func NewDashboard(api *apiclient.Client, interval time.Duration) *Dashboard {
	return &Dashboard{
		status:  newStatus(PageDashboard, interval),
		api:     api,
		window:  series.NewWindow(series.WindowSize),
		clock:   time.Now,
		health:  models.HealthStatus{Status: "loading"},
		metrics: models.Metrics{Values: map[string]any{}},
	}
}

func (d *Dashboard) Refresh(ctx context.Context) error {
	var (
		m          models.Metrics
		h          models.HealthStatus
		mErr, hErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { m, mErr = d.api.MetricsJSON(ctx) })
	wg.Go(func() { h, hErr = d.api.Health(ctx) })
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	d.mu.Lock()
	if mErr != nil {
		d.metrics = models.Metrics{Values: map[string]any{}}
	} else {
		d.metrics = m
		d.window.Push(series.SampleFrom(m, d.clock()))
	}
	if hErr != nil {
		d.health = models.HealthStatus{Status: models.StatusError}
	} else {
		d.health = h
	}
	d.mu.Unlock()

	err := errors.Join(mErr, hErr)
	d.record(err)
	return err
}

func (d *Dashboard) Snapshot() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DashboardSnapshot{
		Meta:       d.meta(),
		Health:     d.health,
		Metrics:    d.metrics.Values,
		Containers: d.metrics.Containers,
		Points:     series.Extract(d.metrics),
		CPU:        series.Gauge(series.CPU(d.metrics)),
		Memory:     series.Gauge(series.Memory(d.metrics)),
		History:    d.window.Samples(),
	}
}
