package views

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/catalog"
	"github.com/xreach/acp/pkg/models"
)

// InvalidParamsMessage is the inline error for unparsable params or a
// failed request.
const InvalidParamsMessage = "Invalid request or JSON params"

// RemediationTarget is the default target of anomaly remediation.
const RemediationTarget = "infrastructure"

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// RemediationSnapshot has the action catalog, the audit log and the raw
// result of the last run.
type RemediationSnapshot struct {
	Meta
	Actions       map[string][]string `json:"actions"`
	CatalogSource string              `json:"catalog_source"`
	Audit         []models.AuditEntry `json:"audit"`
	Result        map[string]any      `json:"result,omitempty"`
}

// Remediation polls the audit log and submits remediation requests.
type Remediation struct {
	status
	api     *apiclient.Client
	catalog *catalog.Catalog
	limit   int
	logger  *slog.Logger

	mu     sync.RWMutex
	audit  []models.AuditEntry
	result map[string]any
}

// NewRemediation creates the remediation page.
func NewRemediation(api *apiclient.Client, interval time.Duration, cat *catalog.Catalog, logger *slog.Logger) *Remediation {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remediation{
		status:  newStatus(PageRemediation, interval),
		api:     api,
		catalog: cat,
		logger:  logger,
		audit:   []models.AuditEntry{},
	}
}

// WithAuditLimit caps the audit entries fetched per refresh. Call it before
// the page is mounted.
func (r *Remediation) WithAuditLimit(n int) *Remediation {
	r.limit = n
	return r
}

func (r *Remediation) Refresh(ctx context.Context) error {
	audit, err := r.api.RemediationAudit(ctx, r.limit)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		audit = []models.AuditEntry{}
	}
	r.mu.Lock()
	r.audit = audit
	r.mu.Unlock()
	r.record(err)
	return err
}

// Run submits a remediation and re-fetches the audit log. paramsJSON may
// be empty. Failures come back as an {"error": ...} result, never as an
// error value.
func (r *Remediation) Run(ctx context.Context, target, action, paramsJSON string) map[string]any {
	result := r.run(ctx, target, action, paramsJSON)

	r.mu.Lock()
	r.result = result
	r.mu.Unlock()

	if err := r.Refresh(ctx); err != nil {
		r.logger.Debug("audit refresh after remediation failed", "error", err)
	}
	return result
}

func (r *Remediation) run(ctx context.Context, target, action, paramsJSON string) map[string]any {
	params := map[string]any{}
	if s := strings.TrimSpace(paramsJSON); s != "" {
		if err := json.Unmarshal([]byte(s), &params); err != nil {
			return errorResult(InvalidParamsMessage)
		}
	}
	if err := r.catalog.Validate(target, action); err != nil {
		return errorResult(err.Error())
	}

	out, err := r.api.Remediate(ctx, models.RemediationRequest{Target: target, Action: action, Params: params})
	if err != nil {
		r.logger.Warn("remediation request failed", "target", target, "action", action, "error", err)
		return errorResult(InvalidParamsMessage)
	}
	return out
}

// Catalog returns the action catalog.
func (r *Remediation) Catalog() *catalog.Catalog { return r.catalog }

func (r *Remediation) Snapshot() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RemediationSnapshot{
		Meta:          r.meta(),
		Actions:       r.catalog.Names(),
		CatalogSource: r.catalog.Source(),
		Audit:         append([]models.AuditEntry{}, r.audit...),
		Result:        r.result,
	}
}

// AnomaliesSnapshot is the anomaly report plus the last remediation result.
type AnomaliesSnapshot struct {
	Meta
	Report models.AnomalyReport `json:"report"`
	Result map[string]any       `json:"result,omitempty"`
}

// Anomalies polls /api/anomalies.
type Anomalies struct {
	status
	api    *apiclient.Client
	logger *slog.Logger

	mu     sync.RWMutex
	report models.AnomalyReport
	result map[string]any
}

// NewAnomalies creates the anomalies page.
func NewAnomalies(api *apiclient.Client, interval time.Duration, logger *slog.Logger) *Anomalies {
	if logger == nil {
		logger = slog.Default()
	}
	return &Anomalies{
		status: newStatus(PageAnomalies, interval),
		api:    api,
		logger: logger,
		report: models.AnomalyReport{Anomalies: []models.Anomaly{}},
	}
}

func (a *Anomalies) Refresh(ctx context.Context) error {
	rep, err := a.api.Anomalies(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		rep = models.AnomalyReport{Anomalies: []models.Anomaly{}}
	}
	a.mu.Lock()
	a.report = rep
	a.mu.Unlock()
	a.record(err)
	return err
}

// Remediate triggers the anomaly's suggested action against the
// infrastructure target, with the anomaly type as the service.
func (a *Anomalies) Remediate(ctx context.Context, anomalyType, action string) map[string]any {
	req := models.RemediationRequest{
		Target: RemediationTarget,
		Action: action,
		Params: map[string]any{"service": anomalyType},
	}
	out, err := a.api.Remediate(ctx, req)
	if err != nil {
		a.logger.Warn("anomaly remediation failed", "type", anomalyType, "action", action, "error", err)
		out = errorResult("Remediation failed")
	}
	a.mu.Lock()
	a.result = out
	a.mu.Unlock()
	return out
}

func (a *Anomalies) Snapshot() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rep := a.report
	rep.Anomalies = append([]models.Anomaly{}, a.report.Anomalies...)
	return AnomaliesSnapshot{Meta: a.meta(), Report: rep, Result: a.result}
}

// Audit severities.
const (
	SeverityAll   = "all"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// AuditRecord is one row of the audit log page.
type AuditRecord struct {
	ID        string `json:"id"`
	Service   string `json:"service"`
	Action    string `json:"action"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
}

// AuditLogsSnapshot is the filtered audit table.
type AuditLogsSnapshot struct {
	Meta
	Severity string        `json:"severity"`
	Search   string        `json:"search"`
	Total    int           `json:"total"`
	Records  []AuditRecord `json:"records"`
}

// AuditLogs merges remediation audit entries and backend logs into one
// table, newest first.
type AuditLogs struct {
	status
	api *apiclient.Client

	mu       sync.RWMutex
	records  []AuditRecord
	severity string
	search   string
}

// NewAuditLogs creates the audit logs page.
func NewAuditLogs(api *apiclient.Client, interval time.Duration) *AuditLogs {
	return &AuditLogs{
		status:   newStatus(PageAuditLogs, interval),
		api:      api,
		records:  []AuditRecord{},
		severity: SeverityAll,
	}
}

func (a *AuditLogs) Refresh(ctx context.Context) error {
	var (
		audit           []models.AuditEntry
		logs            []models.LogEntry
		auditErr, lgErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { audit, auditErr = a.api.RemediationAudit(ctx, 0) })
	wg.Go(func() { logs, lgErr = a.api.Logs(ctx, 0) })
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	records := make([]AuditRecord, 0, len(audit)+len(logs))
	for i, e := range audit {
		records = append(records, auditFromRemediation(i, e))
	}
	for i, l := range logs {
		records = append(records, auditFromLog(i, l))
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp > records[j].Timestamp })

	a.mu.Lock()
	a.records = records
	a.mu.Unlock()

	err := errors.Join(auditErr, lgErr)
	a.record(err)
	return err
}

func auditFromRemediation(i int, e models.AuditEntry) AuditRecord {
	sev := SeverityInfo
	if _, failed := e.Result["error"]; failed {
		sev = SeverityError
	}
	id := e.ID
	if id == "" {
		id = "rem-" + strconv.Itoa(i)
	}
	return AuditRecord{
		ID:        id,
		Service:   "Remediation",
		Action:    e.Target + ": " + e.Action,
		Severity:  sev,
		Timestamp: e.Timestamp,
		User:      "ai-automation",
	}
}

func auditFromLog(i int, l models.LogEntry) AuditRecord {
	sev := SeverityInfo
	switch l.Level {
	case models.LevelWarning:
		sev = SeverityWarn
	case models.LevelError:
		sev = SeverityError
	}
	return AuditRecord{
		ID:        "log-" + strconv.Itoa(i),
		Service:   "System",
		Action:    l.Message,
		Severity:  sev,
		Timestamp: l.Timestamp,
		User:      "system",
	}
}

// SetFilter sets the severity filter and the free-text search. An empty
// severity means all.
func (a *AuditLogs) SetFilter(severity, search string) {
	if severity == "" {
		severity = SeverityAll
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.severity, a.search = severity, search
}

// Filtered applies the current filter.
func (a *AuditLogs) Filtered() []AuditRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	q := strings.ToLower(a.search)
	out := []AuditRecord{}
	for _, r := range a.records {
		if a.severity != SeverityAll && r.Severity != a.severity {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Service), q) &&
			!strings.Contains(strings.ToLower(r.Action), q) &&
			!strings.Contains(strings.ToLower(r.User), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (a *AuditLogs) Snapshot() any {
	recs := a.Filtered()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return AuditLogsSnapshot{
		Meta:     a.meta(),
		Severity: a.severity,
		Search:   a.search,
		Total:    len(a.records),
		Records:  recs,
	}
}
