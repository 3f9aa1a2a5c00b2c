package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/xreach/acp/pkg/models"
)

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (models.HealthStatus, error) {
	var h models.HealthStatus
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &h)
	return h, err
}

// Metrics calls GET /api/metrics.
func (c *Client) Metrics(ctx context.Context) (models.Metrics, error) {
	var m models.Metrics
	err := c.do(ctx, http.MethodGet, "/api/metrics", nil, nil, &m)
	return m, err
}

// MetricsJSON calls GET /api/metrics/json, the dashboard variant.
func (c *Client) MetricsJSON(ctx context.Context) (models.Metrics, error) {
	var m models.Metrics
	err := c.do(ctx, http.MethodGet, "/api/metrics/json", nil, nil, &m)
	return m, err
}

// Logs calls GET /api/logs. A non-positive limit leaves the backend default.
func (c *Client) Logs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var body struct {
		Logs []models.LogEntry `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/logs", q, nil, &body); err != nil {
		return nil, err
	}
	return nonNil(body.Logs), nil
}

// Assets calls GET /api/assets.
func (c *Client) Assets(ctx context.Context) ([]models.AssetCategory, error) {
	var body struct {
		Categories []models.AssetCategory `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/assets", nil, nil, &body); err != nil {
		return nil, err
	}
	return nonNil(body.Categories), nil
}

// AddCategory calls POST /api/assets/category/{name}.
func (c *Client) AddCategory(ctx context.Context, name string) error {
	_, err := c.mutate(ctx, http.MethodPost, "/api/assets/category/"+seg(name), nil, nil)
	return err
}

// AddDevice calls POST /api/assets/item/{category} with the device body.
func (c *Client) AddDevice(ctx context.Context, category string, d models.Device) error {
	body := map[string]any{"id": d.ID, "name": d.Name, "status": d.Status}
	_, err := c.mutate(ctx, http.MethodPost, "/api/assets/item/"+seg(category), nil, body)
	return err
}

// DeleteDevice calls DELETE /api/assets/item/{category}/{id}.
func (c *Client) DeleteDevice(ctx context.Context, category string, id models.DeviceID) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/api/assets/item/"+seg(category)+"/"+seg(id.String()), nil, nil)
	return err
}

// UpdateDeviceStatus calls POST /api/assets/item/{category}/{id}/status.
func (c *Client) UpdateDeviceStatus(ctx context.Context, category string, id models.DeviceID, status string) error {
	q := url.Values{"status": {status}}
	_, err := c.mutate(ctx, http.MethodPost, "/api/assets/item/"+seg(category)+"/"+seg(id.String())+"/status", q, nil)
	return err
}

// DeviceMetrics calls GET /api/assets/{category}/{id}/metrics.
func (c *Client) DeviceMetrics(ctx context.Context, category string, id models.DeviceID) (map[string]any, error) {
	var body struct {
		Metrics map[string]any `json:"metrics"`
		Error   string         `json:"error"`
	}
	path := "/api/assets/" + seg(category) + "/" + seg(id.String()) + "/metrics"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, &BackendError{Path: path, Message: body.Error}
	}
	if body.Metrics == nil {
		body.Metrics = map[string]any{}
	}
	return body.Metrics, nil
}

// DeviceLogs calls GET /api/assets/{category}/{id}/logs.
func (c *Client) DeviceLogs(ctx context.Context, category string, id models.DeviceID) ([]models.LogEntry, error) {
	var body struct {
		Logs  []models.LogEntry `json:"logs"`
		Error string            `json:"error"`
	}
	path := "/api/assets/" + seg(category) + "/" + seg(id.String()) + "/logs"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, &BackendError{Path: path, Message: body.Error}
	}
	return nonNil(body.Logs), nil
}

// Discovery calls GET /api/discovery. The backend answers either with
// categories or with a flat assets list, which is grouped by provider.
func (c *Client) Discovery(ctx context.Context) ([]models.AssetCategory, error) {
	var body struct {
		Categories []models.AssetCategory `json:"categories"`
		Assets     []models.Device        `json:"assets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/discovery", nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Categories != nil {
		return body.Categories, nil
	}
	return GroupByProvider(body.Assets), nil
}

// GroupByProvider turns a flat discovery list into categories named after
// the provider, in sorted order.
func GroupByProvider(devices []models.Device) []models.AssetCategory {
	byProvider := make(map[string][]models.Device)
	for _, d := range devices {
		p := d.Provider
		if p == "" {
			p = "unknown"
		}
		byProvider[p] = append(byProvider[p], d)
	}
	names := make([]string, 0, len(byProvider))
	for p := range byProvider {
		names = append(names, p)
	}
	sort.Strings(names)

	out := make([]models.AssetCategory, 0, len(names))
	for _, p := range names {
		out = append(out, models.AssetCategory{Name: p, Items: byProvider[p]})
	}
	return out
}

// Overview calls GET /api/overview.
func (c *Client) Overview(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/overview", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Agents calls GET /api/agent.
func (c *Client) Agents(ctx context.Context) (map[string]models.AgentStatus, error) {
	var body struct {
		Agents map[string]models.AgentStatus `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/agent", nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Agents == nil {
		body.Agents = map[string]models.AgentStatus{}
	}
	return body.Agents, nil
}

// Anomalies calls GET /api/anomalies.
func (c *Client) Anomalies(ctx context.Context) (models.AnomalyReport, error) {
	var r models.AnomalyReport
	if err := c.do(ctx, http.MethodGet, "/api/anomalies", nil, nil, &r); err != nil {
		return models.AnomalyReport{}, err
	}
	r.Anomalies = nonNil(r.Anomalies)
	return r, nil
}

// Remediate calls POST /api/remediation and returns the raw response
// object. Backend-level failures are part of the returned object.
func (c *Client) Remediate(ctx context.Context, req models.RemediationRequest) (map[string]any, error) {
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/remediation", nil, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemediationAudit calls GET /api/remediation/audit.
func (c *Client) RemediationAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var body struct {
		Audit []models.AuditEntry `json:"audit"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/remediation/audit", q, nil, &body); err != nil {
		return nil, err
	}
	return nonNil(body.Audit), nil
}

// RemediationActions calls GET /api/remediation/actions. The backend may
// wrap the target→actions map in {"actions": ...}.
func (c *Client) RemediationActions(ctx context.Context) (map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/remediation/actions", nil, nil, &raw); err != nil {
		return nil, err
	}
	if inner, ok := raw["actions"]; ok {
		raw = nil
		if err := json.Unmarshal(inner, &raw); err != nil {
			return nil, fmt.Errorf("%w: decoding actions: %w", ErrUnavailable, err)
		}
	}
	out := make(map[string][]string, len(raw))
	for target, v := range raw {
		var actions []string
		if err := json.Unmarshal(v, &actions); err != nil {
			continue
		}
		out[target] = actions
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
