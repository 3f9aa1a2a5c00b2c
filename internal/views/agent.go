package views

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/pkg/models"
)

// AgentSnapshot is one agent's heartbeat plus the anomalies and audit log.
// With no id it lists every agent.
type AgentSnapshot struct {
	Meta
	ID        string                        `json:"id,omitempty"`
	Found     bool                          `json:"found"`
	Agent     *models.AgentStatus           `json:"agent,omitempty"`
	Agents    map[string]models.AgentStatus `json:"agents"`
	AgentIDs  []string                      `json:"agent_ids"`
	Anomalies []models.Anomaly              `json:"anomalies"`
	Audit     []models.AuditEntry           `json:"audit"`
}

// AgentDetails polls agents, anomalies and the remediation audit together.
type AgentDetails struct {
	status
	api *apiclient.Client
	id  string

	mu        sync.RWMutex
	agents    map[string]models.AgentStatus
	anomalies []models.Anomaly
	audit     []models.AuditEntry
}

// NewAgentDetails creates the page for one agent, or the agent list when id
// is empty.
func NewAgentDetails(api *apiclient.Client, interval time.Duration, id string) *AgentDetails {
	name := PrefixAgent
	if id != "" {
		name = PrefixAgent + "/" + id
	}
	return &AgentDetails{
		status:    newStatus(name, interval),
		api:       api,
		id:        id,
		agents:    map[string]models.AgentStatus{},
		anomalies: []models.Anomaly{},
		audit:     []models.AuditEntry{},
	}
}

// AgentFactory builds "agent/<id>" pages.
func AgentFactory(api *apiclient.Client, interval time.Duration) Factory {
	return func(rest string) (Page, error) {
		if rest == "" || strings.Contains(rest, "/") {
			return nil, fmt.Errorf("%w: agent id", ErrInvalidInput)
		}
		return NewAgentDetails(api, interval, rest), nil
	}
}

func (a *AgentDetails) Refresh(ctx context.Context) error {
	var (
		agents                   map[string]models.AgentStatus
		report                   models.AnomalyReport
		audit                    []models.AuditEntry
		agErr, anomErr, auditErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { agents, agErr = a.api.Agents(ctx) })
	wg.Go(func() { report, anomErr = a.api.Anomalies(ctx) })
	wg.Go(func() { audit, auditErr = a.api.RemediationAudit(ctx, 0) })
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if agErr != nil || agents == nil {
		agents = map[string]models.AgentStatus{}
	}
	anomalies := report.Anomalies
	if anomErr != nil || anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	if auditErr != nil {
		audit = []models.AuditEntry{}
	}

	a.mu.Lock()
	a.agents, a.anomalies, a.audit = agents, anomalies, audit
	a.mu.Unlock()

	err := errors.Join(agErr, anomErr, auditErr)
	a.record(err)
	return err
}

func (a *AgentDetails) Snapshot() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	agents := make(map[string]models.AgentStatus, len(a.agents))
	ids := make([]string, 0, len(a.agents))
	for id, s := range a.agents {
		agents[id] = s
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := AgentSnapshot{
		Meta:      a.meta(),
		ID:        a.id,
		Agents:    agents,
		AgentIDs:  ids,
		Anomalies: append([]models.Anomaly{}, a.anomalies...),
		Audit:     append([]models.AuditEntry{}, a.audit...),
	}
	if s, ok := a.agents[a.id]; ok {
		snap.Found = true
		snap.Agent = &s
	}
	return snap
}

// DeviceSnapshot is the device panel: live metrics and the device log.
type DeviceSnapshot struct {
	Meta
	Category string            `json:"category"`
	ID       models.DeviceID   `json:"id"`
	Metrics  map[string]any    `json:"metrics"`
	Logs     []models.LogEntry `json:"logs"`
}

// DevicePanel polls one device's metrics and then its logs.
type DevicePanel struct {
	status
	api      *apiclient.Client
	category string
	id       models.DeviceID

	mu      sync.RWMutex
	metrics map[string]any
	logs    []models.LogEntry
}

// NewDevicePanel creates the panel for one device.
func NewDevicePanel(api *apiclient.Client, interval time.Duration, category string, id models.DeviceID) *DevicePanel {
	return &DevicePanel{
		status:   newStatus(PrefixDevice+"/"+category+"/"+id.String(), interval),
		api:      api,
		category: category,
		id:       id,
		metrics:  map[string]any{},
		logs:     []models.LogEntry{},
	}
}

// DeviceFactory builds "device/<category>/<id>" pages. The id is the part
// after the last slash so category names may not contain one.
func DeviceFactory(api *apiclient.Client, interval time.Duration) Factory {
	return func(rest string) (Page, error) {
		category, id, ok := strings.Cut(rest, "/")
		if !ok || category == "" || id == "" || strings.Contains(id, "/") {
			return nil, fmt.Errorf("%w: device/<category>/<id>", ErrInvalidInput)
		}
		return NewDevicePanel(api, interval, category, models.DeviceID(id)), nil
	}
}

func (d *DevicePanel) Refresh(ctx context.Context) error {
	m, mErr := d.api.DeviceMetrics(ctx, d.category, d.id)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logs, lErr := d.api.DeviceLogs(ctx, d.category, d.id)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if mErr != nil || m == nil {
		m = map[string]any{}
	}
	if lErr != nil {
		logs = []models.LogEntry{}
	}

	d.mu.Lock()
	d.metrics, d.logs = m, logs
	d.mu.Unlock()

	err := errors.Join(mErr, lErr)
	d.record(err)
	return err
}

func (d *DevicePanel) Snapshot() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m := make(map[string]any, len(d.metrics))
	for k, v := range d.metrics {
		m[k] = v
	}
	return DeviceSnapshot{
		Meta:     d.meta(),
		Category: d.category,
		ID:       d.id,
		Metrics:  m,
		Logs:     append([]models.LogEntry{}, d.logs...),
	}
}
