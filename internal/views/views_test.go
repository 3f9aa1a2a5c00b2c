package views

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xreach/acp/internal/alert"
	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/apiclient/apitest"
	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/internal/catalog"
	"github.com/xreach/acp/internal/config"
	"github.com/xreach/acp/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, b *apitest.Backend) *apiclient.Client {
	t.Helper()
	ts := b.Start(t)
	c, err := apiclient.New(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testIntervals() Intervals {
	iv := DefaultIntervals()
	iv.Dashboard = time.Second
	iv.Device = time.Second
	return iv
}

func newTestRegistry(t *testing.T, b *apitest.Backend) (*Registry, *Pages) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r, p := NewDefault(ctx, Deps{
		API:       newClient(t, b),
		Intervals: testIntervals(),
		Logger:    discardLogger(),
	})
	t.Cleanup(func() {
		r.StopAll()
		cancel()
	})
	return r, p
}

func TestDashboard_Refresh(t *testing.T) {
	b := apitest.New()
	b.SetMetrics(75, 85)
	d := NewDashboard(newClient(t, b), time.Second)

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := d.Snapshot().(DashboardSnapshot)
	if !snap.Health.OK() {
		t.Errorf("health = %q, want ok", snap.Health.Status)
	}
	if snap.CPU.Percent != 75 || snap.CPU.Level != "warn" {
		t.Errorf("cpu gauge = %+v", snap.CPU)
	}
	if snap.Memory.Level != "danger" {
		t.Errorf("memory level = %q, want danger", snap.Memory.Level)
	}
	if len(snap.History) != 1 {
		t.Errorf("history len = %d, want 1", len(snap.History))
	}
	if snap.Error != "" {
		t.Errorf("unexpected error %q", snap.Error)
	}
}

func TestDashboard_HealthFailureFallsBack(t *testing.T) {
	b := apitest.New()
	b.Fail("GET /api/health", true)
	d := NewDashboard(newClient(t, b), time.Second)

	if err := d.Refresh(context.Background()); err == nil {
		t.Error("expected refresh error")
	}
	snap := d.Snapshot().(DashboardSnapshot)
	if snap.Health.Status != models.StatusError {
		t.Errorf("health = %q, want error", snap.Health.Status)
	}
	if len(snap.Metrics) == 0 {
		t.Error("metrics should still be set when only health fails")
	}
}

func TestDashboard_MetricsFailureKeepsHistory(t *testing.T) {
	b := apitest.New()
	d := NewDashboard(newClient(t, b), time.Second)
	ctx := context.Background()

	_ = d.Refresh(ctx)
	b.Fail("GET /api/metrics/json", true)
	_ = d.Refresh(ctx)

	snap := d.Snapshot().(DashboardSnapshot)
	if len(snap.Metrics) != 0 {
		t.Errorf("metrics = %v, want empty", snap.Metrics)
	}
	if len(snap.History) != 1 {
		t.Errorf("history len = %d, want 1", len(snap.History))
	}
}

func TestRefresh_CanceledContextKeepsState(t *testing.T) {
	b := apitest.New()
	l := NewLogs(newClient(t, b), time.Second, 0)
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := len(l.Snapshot().(LogsSnapshot).Logs); got != 1 {
		t.Errorf("logs = %d, want 1", got)
	}
}

func TestRegistry_RefCounting(t *testing.T) {
	b := apitest.New()
	r, _ := newTestRegistry(t, b)

	if _, err := r.Acquire(PageDashboard); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire(PageDashboard); err != nil {
		t.Fatal(err)
	}
	if got := r.Mounted(PageDashboard); got != 2 {
		t.Errorf("mounted = %d, want 2", got)
	}
	waitFor(t, "first poll", func() bool { return b.Calls("GET /api/health") >= 1 })

	r.Release(PageDashboard)
	if got := r.Mounted(PageDashboard); got != 1 {
		t.Errorf("mounted = %d, want 1", got)
	}
	r.Release(PageDashboard)
	if got := r.Mounted(PageDashboard); got != 0 {
		t.Errorf("mounted = %d, want 0", got)
	}

	calls := b.Calls("GET /api/health")
	time.Sleep(1500 * time.Millisecond)
	if got := b.Calls("GET /api/health"); got != calls {
		t.Errorf("health polled %d more times after release", got-calls)
	}

	r.Release(PageDashboard)
	if got := r.Mounted(PageDashboard); got != 0 {
		t.Errorf("extra release changed count to %d", got)
	}
}

func TestRegistry_UnknownPage(t *testing.T) {
	r, _ := newTestRegistry(t, apitest.New())

	for _, name := range []string{"nope", "device/servers", "agent/", "weird/1"} {
		if _, err := r.Acquire(name); !errors.Is(err, ErrUnknownPage) {
			t.Errorf("Acquire(%q) err = %v, want ErrUnknownPage", name, err)
		}
	}
}

func TestRegistry_DynamicDevicePage(t *testing.T) {
	b := apitest.New()
	r, _ := newTestRegistry(t, b)
	name := "device/servers/2"

	p, err := r.Acquire(name)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != name {
		t.Errorf("name = %q, want %q", p.Name(), name)
	}
	waitFor(t, "device logs", func() bool { return len(p.Snapshot().(DeviceSnapshot).Logs) == 1 })

	snap := p.Snapshot().(DeviceSnapshot)
	if snap.Metrics["cpu"] != "42%" {
		t.Errorf("metrics = %v", snap.Metrics)
	}
	if len(snap.Logs) != 1 {
		t.Errorf("logs = %d, want 1", len(snap.Logs))
	}

	r.Release(name)
	if got := r.Mounted(name); got != 0 {
		t.Errorf("mounted = %d, want 0", got)
	}
	for _, n := range r.Names() {
		if n == name {
			t.Errorf("dynamic page %q listed as static", n)
		}
	}
}

func TestRegistry_SnapshotRefreshesUnmounted(t *testing.T) {
	b := apitest.New()
	b.AddLog(models.LogEntry{Level: models.LevelError, Message: "disk full", Timestamp: "2025-01-01T12:01:00"})
	r, _ := newTestRegistry(t, b)

	snap, err := r.Snapshot(context.Background(), PageLogs)
	if err != nil {
		t.Fatal(err)
	}
	logs := snap.(LogsSnapshot)
	if len(logs.Logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs.Logs))
	}
	if logs.Counts[models.LevelError] != 1 {
		t.Errorf("counts = %v", logs.Counts)
	}
	if b.Calls("GET /api/logs") != 1 {
		t.Errorf("logs fetched %d times, want 1", b.Calls("GET /api/logs"))
	}
}

func TestRegistry_SubscribeNotified(t *testing.T) {
	r, _ := newTestRegistry(t, apitest.New())

	ch, cancel, err := r.Subscribe(PageLogs)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if _, err := r.Refresh(context.Background(), PageLogs); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after refresh")
	}
}

func TestRegistry_SubscriberKeepsDynamicPage(t *testing.T) {
	r, _ := newTestRegistry(t, apitest.New())
	name := "device/servers/2"

	ch, cancel, err := r.Subscribe(name)
	if err != nil {
		t.Fatal(err)
	}
	r.mu.Lock()
	watched := r.pages[name]
	r.mu.Unlock()

	// An unmounted snapshot and another viewer coming and going must not
	// replace the entry the subscriber is attached to.
	if _, err := r.Snapshot(context.Background(), name); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Acquire(name); err != nil {
		t.Fatal(err)
	}
	r.Release(name)
	if _, err := r.Get(name); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	default:
	}

	r.mu.Lock()
	same := r.pages[name] == watched
	r.mu.Unlock()
	if !same {
		t.Fatal("subscribed page entry was replaced")
	}

	if _, err := r.Acquire(name); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber not notified after mount")
	}
	r.Release(name)

	cancel()
	r.mu.Lock()
	_, kept := r.pages[name]
	r.mu.Unlock()
	if kept {
		t.Error("unused dynamic page kept after unsubscribe")
	}
}

func TestRegistry_Names(t *testing.T) {
	r, _ := newTestRegistry(t, apitest.New())
	names := r.Names()
	if len(names) != 12 {
		t.Errorf("names = %v", names)
	}
	if got := strings.Join(r.Prefixes(), ","); got != "agent,device" {
		t.Errorf("prefixes = %q", got)
	}
}

func TestAlerts_EvaluatesAndForwards(t *testing.T) {
	b := apitest.New()
	b.SetMetrics(95, 75)
	var buf bytes.Buffer
	hist := alert.NewHistory(alert.DefaultHistorySize)
	a := NewAlerts(newClient(t, b), time.Second, alert.NewEvaluator(0, 0), hist, alert.NewWriterAlerter(&buf), discardLogger())
	ctx := context.Background()

	if err := a.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	snap := a.Snapshot().(AlertsSnapshot)
	if len(snap.Active) != 2 {
		t.Fatalf("active = %d, want 2", len(snap.Active))
	}
	if snap.Active[0].Metric != alert.MetricCPU || snap.Active[0].Severity != models.SeverityCritical {
		t.Errorf("first alert = %+v", snap.Active[0])
	}
	if snap.Active[1].Severity != models.SeverityWarning {
		t.Errorf("second alert = %+v", snap.Active[1])
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("forwarded output = %q", buf.String())
	}

	b.SetMetrics(10, 10)
	_ = a.Refresh(ctx)
	snap = a.Snapshot().(AlertsSnapshot)
	if len(snap.Active) != 0 {
		t.Errorf("active = %d, want 0", len(snap.Active))
	}
	if len(snap.History) != 2 {
		t.Errorf("history = %d, want 2", len(snap.History))
	}
}

func TestAlerts_MetricsFailureClearsActive(t *testing.T) {
	b := apitest.New()
	b.Fail("GET /api/metrics", true)
	a := NewAlerts(newClient(t, b), time.Second, alert.NewEvaluator(0, 0), nil, nil, discardLogger())

	if err := a.Refresh(context.Background()); err == nil {
		t.Error("expected error")
	}
	snap := a.Snapshot().(AlertsSnapshot)
	if snap.CPU != 0 || len(snap.Active) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRemediation_Run(t *testing.T) {
	b := apitest.New()
	rem := NewRemediation(newClient(t, b), time.Second, catalog.Default(), discardLogger())
	ctx := context.Background()

	out := rem.Run(ctx, "cicd", "rollback", `{"pipeline": "main"}`)
	if out["id"] == nil {
		t.Fatalf("result = %v", out)
	}
	var sent models.RemediationRequest
	if err := json.Unmarshal(b.LastBody("POST /api/remediation"), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Params["pipeline"] != "main" {
		t.Errorf("params = %v", sent.Params)
	}

	snap := rem.Snapshot().(RemediationSnapshot)
	if len(snap.Audit) != 1 {
		t.Errorf("audit = %d, want 1", len(snap.Audit))
	}
	if snap.Result["id"] != out["id"] {
		t.Errorf("stored result = %v", snap.Result)
	}
}

func TestRemediation_InvalidParams(t *testing.T) {
	b := apitest.New()
	rem := NewRemediation(newClient(t, b), time.Second, nil, discardLogger())

	out := rem.Run(context.Background(), "cicd", "rollback", "{not json")
	if out["error"] != InvalidParamsMessage {
		t.Errorf("result = %v", out)
	}
	if b.Calls("POST /api/remediation") != 0 {
		t.Error("request sent with invalid params")
	}
}

func TestRemediation_UnknownAction(t *testing.T) {
	b := apitest.New()
	rem := NewRemediation(newClient(t, b), time.Second, nil, discardLogger())

	out := rem.Run(context.Background(), "cicd", "format_disk", "")
	msg, _ := out["error"].(string)
	if !strings.Contains(msg, "format_disk") {
		t.Errorf("result = %v", out)
	}
	if b.Calls("POST /api/remediation") != 0 {
		t.Error("request sent for unknown action")
	}
}

func TestRemediation_RequestFailure(t *testing.T) {
	b := apitest.New()
	b.Fail("POST /api/remediation", true)
	rem := NewRemediation(newClient(t, b), time.Second, nil, discardLogger())

	out := rem.Run(context.Background(), "infrastructure", "scale", "")
	if out["error"] != InvalidParamsMessage {
		t.Errorf("result = %v", out)
	}
	if b.Calls("GET /api/remediation/audit") != 1 {
		t.Error("audit not re-fetched after failure")
	}
}

func TestAnomalies_Remediate(t *testing.T) {
	b := apitest.New()
	b.SetAnomalies([]models.Anomaly{{Type: "cpu_spike", Value: 99, Remediation: "scale"}})
	a := NewAnomalies(newClient(t, b), time.Second, discardLogger())
	ctx := context.Background()

	if err := a.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	snap := a.Snapshot().(AnomaliesSnapshot)
	if len(snap.Report.Anomalies) != 1 {
		t.Fatalf("anomalies = %d", len(snap.Report.Anomalies))
	}

	an := snap.Report.Anomalies[0]
	out := a.Remediate(ctx, an.Type, an.Remediation)
	if out["error"] != nil {
		t.Errorf("result = %v", out)
	}
	var sent models.RemediationRequest
	if err := json.Unmarshal(b.LastBody("POST /api/remediation"), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Target != RemediationTarget || sent.Action != "scale" || sent.Params["service"] != "cpu_spike" {
		t.Errorf("sent = %+v", sent)
	}
}

func TestAuditLogs_Filter(t *testing.T) {
	b := apitest.New()
	b.AddLog(models.LogEntry{Level: models.LevelWarning, Message: "Disk latency high", Timestamp: "2025-01-01T12:05:00"})
	c := newClient(t, b)
	ctx := context.Background()
	if _, err := c.Remediate(ctx, models.RemediationRequest{Target: "cicd", Action: "rollback"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Remediate(ctx, models.RemediationRequest{Target: "cicd", Action: "nuke"}); err != nil {
		t.Fatal(err)
	}

	a := NewAuditLogs(c, time.Second)
	if err := a.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		severity, search string
		want             int
	}{
		{"", "", 4},
		{SeverityError, "", 1},
		{SeverityWarn, "", 1},
		{SeverityAll, "disk", 1},
		{SeverityAll, "AI-AUTOMATION", 2},
		{SeverityInfo, "rollback", 1},
		{SeverityError, "disk", 0},
	}
	for _, tt := range tests {
		a.SetFilter(tt.severity, tt.search)
		snap := a.Snapshot().(AuditLogsSnapshot)
		if len(snap.Records) != tt.want {
			t.Errorf("filter(%q, %q) = %d records, want %d", tt.severity, tt.search, len(snap.Records), tt.want)
		}
		if snap.Total != 4 {
			t.Errorf("total = %d, want 4", snap.Total)
		}
	}
}

func TestSettings_DemoDefaultsPerTab(t *testing.T) {
	b := apitest.New()
	b.Fail("GET /api/settings/general", true)
	s := NewSettings(newClient(t, b), time.Second, discardLogger())

	if err := s.Refresh(context.Background()); err == nil {
		t.Error("expected error for the failing tab")
	}
	snap := s.Snapshot().(SettingsSnapshot)
	if !snap.Demo[apiclient.TabGeneral] || snap.General.CompanyName != defaultGeneral().CompanyName {
		t.Errorf("general = %+v demo=%v", snap.General, snap.Demo)
	}
	if snap.Demo[apiclient.TabNetwork] {
		t.Error("network marked demo although it loaded")
	}
	if len(snap.Network.AllowedCIDRs) != 1 || snap.Network.AllowedCIDRs[0] != "10.0.0.0/24" {
		t.Errorf("network = %+v", snap.Network)
	}
}

func TestSettings_SaveAndRoles(t *testing.T) {
	b := apitest.New()
	s := NewSettings(newClient(t, b), time.Second, discardLogger())
	ctx := context.Background()

	if err := s.SaveGeneral(ctx, models.GeneralSettings{CompanyName: "Hospital", Theme: "neon"}); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().(SettingsSnapshot).General.CompanyName; got != "Hospital" {
		t.Errorf("company = %q", got)
	}

	if err := s.AddRole(ctx, "", "admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if err := s.AddRole(ctx, "ops@corp.com", "operator"); err != nil {
		t.Fatal(err)
	}
	roles := s.Snapshot().(SettingsSnapshot).Roles
	if len(roles) != 1 || roles[0].User != "ops@corp.com" {
		t.Fatalf("roles = %+v", roles)
	}
	if err := s.DeleteRole(ctx, roles[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRole(ctx, "missing"); err == nil {
		t.Error("expected error deleting a missing role")
	}
}

func TestIntegrations_AddDelete(t *testing.T) {
	b := apitest.New()
	in := NewIntegrations(newClient(t, b), time.Second, discardLogger())
	ctx := context.Background()

	if _, err := in.Add(ctx, models.IntegrationRequest{Provider: "aws"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if b.Calls("POST /api/integrations") != 0 {
		t.Error("request sent without credentials")
	}

	created, err := in.Add(ctx, models.IntegrationRequest{Provider: "AWS", Region: "eu-west-1", Credentials: "AKIAEXAMPLEKEY"})
	if err != nil {
		t.Fatal(err)
	}
	snap := in.Snapshot().(IntegrationsSnapshot)
	if len(snap.Integrations) != 1 || snap.Integrations[0].Kind != "aws" {
		t.Fatalf("integrations = %+v", snap.Integrations)
	}

	if err := in.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if got := len(in.Snapshot().(IntegrationsSnapshot).Integrations); got != 0 {
		t.Errorf("integrations = %d after delete", got)
	}
}

func TestProviderKind(t *testing.T) {
	tests := map[string]string{
		"AWS":        "aws",
		"azure-prod": "azure",
		"k8s":        "kubernetes",
		"onprem":     "onprem",
		"postgresdb": "database",
		"vmware":     "other",
	}
	for in, want := range tests {
		if got := ProviderKind(in); got != want {
			t.Errorf("ProviderKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAgentDetails(t *testing.T) {
	b := apitest.New()
	b.SetAgent("edge-1", models.AgentStatus{Status: "online", LastSeen: "2025-01-01T12:00:00"})
	c := newClient(t, b)

	p, err := AgentFactory(c, time.Second)("edge-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := p.Snapshot().(AgentSnapshot)
	if !snap.Found || snap.Agent.Status != "online" {
		t.Errorf("snapshot = %+v", snap)
	}

	missing := NewAgentDetails(c, time.Second, "ghost")
	_ = missing.Refresh(context.Background())
	if ms := missing.Snapshot().(AgentSnapshot); ms.Found || len(ms.AgentIDs) != 1 {
		t.Errorf("missing agent snapshot = %+v", ms)
	}
}

func TestAssetsPage(t *testing.T) {
	b := apitest.New()
	c := newClient(t, b)
	page := NewAssets(assets.NewInventory(c, discardLogger()), time.Second)
	ctx := context.Background()

	if err := page.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	page.Inventory().Toggle("servers", "1")
	page.Inventory().RequestDelete("atms", "1")

	snap := page.Snapshot().(AssetsSnapshot)
	if len(snap.Categories) != 2 {
		t.Errorf("categories = %d, want 2", len(snap.Categories))
	}
	if snap.Icons["atms"] != assets.KindATM {
		t.Errorf("icons = %v", snap.Icons)
	}
	if snap.Expanded != "servers-1" {
		t.Errorf("expanded = %q", snap.Expanded)
	}
	if snap.PendingDelete == nil || snap.PendingDelete.Category != "atms" {
		t.Errorf("pending = %+v", snap.PendingDelete)
	}

	if err := page.Inventory().ConfirmDelete(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(page.Snapshot().(AssetsSnapshot).Categories); got != 1 {
		t.Errorf("categories after delete = %d, want 1", got)
	}
}

func TestAnalytics_Filter(t *testing.T) {
	b := apitest.New()
	b.SetDiscovered([]models.Device{
		{ID: "i-1", Name: "web", Provider: "aws", Region: "us-east-1"},
		{ID: "i-2", Name: "db", Provider: "aws", Region: "eu-west-1"},
		{ID: "vm-1", Name: "vm", Provider: "azure", Region: "westeurope"},
	})
	a := NewAnalytics(newClient(t, b), time.Second)
	if a.Name() != PageAnalytics {
		t.Errorf("name = %q", a.Name())
	}
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := a.Snapshot().(AnalyticsSnapshot)
	if len(snap.Resources) != 3 {
		t.Errorf("resources = %d, want 3", len(snap.Resources))
	}
	a.SetFilter(assets.Filter{Provider: "aws"})
	snap = a.Snapshot().(AnalyticsSnapshot)
	if len(snap.Resources) != 2 || snap.Filter.Region != assets.FilterAll {
		t.Errorf("filtered = %+v", snap)
	}
	if snap.Providers[0] != assets.FilterAll {
		t.Errorf("providers = %v", snap.Providers)
	}
}

func TestIntervalsFromConfig(t *testing.T) {
	iv, err := IntervalsFromConfig(config.PollingConfig{Dashboard: "2s"})
	if err != nil {
		t.Fatal(err)
	}
	if iv.Dashboard != 2*time.Second || iv.Device != 10*time.Second {
		t.Errorf("intervals = %+v", iv)
	}
	iv, err = IntervalsFromConfig(config.PollingConfig{Settings: "1m"})
	if err != nil {
		t.Fatal(err)
	}
	if iv.Settings != time.Minute || iv.Integrations != 15*time.Second {
		t.Errorf("settings = %v, integrations = %v", iv.Settings, iv.Integrations)
	}
	if _, err := IntervalsFromConfig(config.PollingConfig{Logs: "soon"}); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestNewDefault_Limits(t *testing.T) {
	b := apitest.New()
	b.AddLog(models.LogEntry{Level: models.LevelWarning, Message: "slow disk", Timestamp: "2025-01-01T12:01:00"})
	b.AddLog(models.LogEntry{Level: models.LevelError, Message: "disk full", Timestamp: "2025-01-01T12:02:00"})
	c := newClient(t, b)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Remediate(ctx, models.RemediationRequest{Target: "cicd", Action: "rollback"}); err != nil {
			t.Fatal(err)
		}
	}

	_, p := NewDefault(ctx, Deps{API: c, Intervals: DefaultIntervals(), Logger: discardLogger(), LogLimit: 1, AuditLimit: 2})
	if p.Settings.Interval() != DefaultIntervals().Settings {
		t.Errorf("settings interval = %v", p.Settings.Interval())
	}

	if err := p.Logs.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	logs := p.Logs.Snapshot().(LogsSnapshot).Logs
	if len(logs) != 1 || logs[0].Message != "disk full" {
		t.Errorf("logs = %+v, want only the newest", logs)
	}

	if err := p.Remediation.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Remediation.Snapshot().(RemediationSnapshot).Audit); got != 2 {
		t.Errorf("audit = %d, want 2", got)
	}
}
