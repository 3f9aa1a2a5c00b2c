package views

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xreach/acp/internal/alert"
	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/internal/catalog"
	"github.com/xreach/acp/internal/config"
)

// Intervals are the poll periods of every page.
type Intervals struct {
	Dashboard    time.Duration
	Alerts       time.Duration
	Logs         time.Duration
	Assets       time.Duration
	Discovery    time.Duration
	Analytics    time.Duration
	Remediation  time.Duration
	Anomalies    time.Duration
	Agent        time.Duration
	Device       time.Duration
	Integrations time.Duration
	Settings     time.Duration
}

// DefaultIntervals match the dashboard defaults: 5s for live pages, 10s for
// the device panel and 15s for discovery-backed pages.
func DefaultIntervals() Intervals {
	return Intervals{
		Dashboard:    5 * time.Second,
		Alerts:       5 * time.Second,
		Logs:         5 * time.Second,
		Assets:       5 * time.Second,
		Discovery:    15 * time.Second,
		Analytics:    15 * time.Second,
		Remediation:  5 * time.Second,
		Anomalies:    5 * time.Second,
		Agent:        5 * time.Second,
		Device:       10 * time.Second,
		Integrations: 15 * time.Second,
		Settings:     15 * time.Second,
	}
}

// IntervalsFromConfig parses the polling section. Empty values keep the
// default.
func IntervalsFromConfig(pc config.PollingConfig) (Intervals, error) {
	iv := DefaultIntervals()
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"dashboard", pc.Dashboard, &iv.Dashboard},
		{"alerts", pc.Alerts, &iv.Alerts},
		{"logs", pc.Logs, &iv.Logs},
		{"assets", pc.Assets, &iv.Assets},
		{"discovery", pc.Discovery, &iv.Discovery},
		{"analytics", pc.Analytics, &iv.Analytics},
		{"remediation", pc.Remediation, &iv.Remediation},
		{"anomalies", pc.Anomalies, &iv.Anomalies},
		{"agent", pc.Agent, &iv.Agent},
		{"device", pc.Device, &iv.Device},
		{"integrations", pc.Integrations, &iv.Integrations},
		{"settings", pc.Settings, &iv.Settings},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Intervals{}, fmt.Errorf("polling.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return iv, nil
}

// Deps are the collaborators shared by the pages.
type Deps struct {
	API       *apiclient.Client
	Intervals Intervals
	Evaluator alert.Evaluator
	History   *alert.History
	Alerter   alert.Alerter
	Catalog   *catalog.Catalog
	Logger    *slog.Logger

	// LogLimit and AuditLimit cap the entries fetched by the logs and
	// remediation pages. Zero leaves the backend default.
	LogLimit   int
	AuditLimit int
}

// Pages gives typed access to the static pages of a registry built by
// NewDefault.
type Pages struct {
	Dashboard    *Dashboard
	Alerts       *Alerts
	Logs         *Logs
	Remediation  *Remediation
	Assets       *Assets
	Discovery    *Discovery
	Analytics    *Analytics
	Agents       *AgentDetails
	Settings     *Settings
	AuditLogs    *AuditLogs
	Integrations *Integrations
	Anomalies    *Anomalies
}

// NewDefault builds a registry with every page and the agent and device
// factories.
func NewDefault(ctx context.Context, d Deps) (*Registry, *Pages) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Evaluator == (alert.Evaluator{}) {
		d.Evaluator = alert.NewEvaluator(0, 0)
	}
	iv := d.Intervals
	logger := d.Logger

	p := &Pages{
		Dashboard:    NewDashboard(d.API, iv.Dashboard),
		Alerts:       NewAlerts(d.API, iv.Alerts, d.Evaluator, d.History, d.Alerter, logger),
		Logs:         NewLogs(d.API, iv.Logs, d.LogLimit),
		Remediation:  NewRemediation(d.API, iv.Remediation, d.Catalog, logger).WithAuditLimit(d.AuditLimit),
		Assets:       NewAssets(assets.NewInventory(d.API, logger), iv.Assets),
		Discovery:    NewDiscovery(d.API, iv.Discovery),
		Analytics:    NewAnalytics(d.API, iv.Analytics),
		Agents:       NewAgentDetails(d.API, iv.Agent, ""),
		Settings:     NewSettings(d.API, iv.Settings, logger),
		AuditLogs:    NewAuditLogs(d.API, iv.Remediation),
		Integrations: NewIntegrations(d.API, iv.Integrations, logger),
		Anomalies:    NewAnomalies(d.API, iv.Anomalies, logger),
	}

	r := NewRegistry(ctx, logger)
	for _, page := range []Page{
		p.Dashboard, p.Alerts, p.Logs, p.Remediation, p.Assets, p.Discovery,
		p.Analytics, p.Agents, p.Settings, p.AuditLogs, p.Integrations, p.Anomalies,
	} {
		r.Register(page)
	}
	r.RegisterFactory(PrefixAgent, AgentFactory(d.API, iv.Agent))
	r.RegisterFactory(PrefixDevice, DeviceFactory(d.API, iv.Device))
	return r, p
}
