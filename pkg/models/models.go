package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Health status values reported by /api/health or set as a fallback.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Log levels used by the backend log buffer.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Alert severities produced by threshold evaluation.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// OK reports whether the backend declared itself healthy.
func (h HealthStatus) OK() bool {
	return h.Status == StatusOK
}

// ContainerMetrics is one entry of the optional containers[] list.
type ContainerMetrics struct {
	Name   string         `json:"name"`
	Values map[string]any `json:"values"`
}

// Metrics is a free-form metrics snapshot. The backend sends either
// {"metrics": {...}} or the bare map; both decode into Values.
type Metrics struct {
	Values     map[string]any     `json:"metrics"`
	Containers []ContainerMetrics `json:"containers,omitempty"`
}

// UnmarshalJSON accepts the wrapped and the flat metrics shapes.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	values := raw
	if inner, ok := raw["metrics"].(map[string]any); ok {
		values = inner
		if c, ok := raw["containers"]; ok {
			if _, dup := values["containers"]; !dup {
				values["containers"] = c
			}
		}
	}

	m.Values = make(map[string]any, len(values))
	m.Containers = nil
	for k, v := range values {
		if k == "containers" {
			m.Containers = decodeContainers(v)
			continue
		}
		m.Values[k] = v
	}
	return nil
}

func decodeContainers(v any) []ContainerMetrics {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ContainerMetrics, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := ContainerMetrics{Values: make(map[string]any)}
		if nested, ok := obj["values"].(map[string]any); ok {
			for k, val := range nested {
				c.Values[k] = val
			}
		}
		for k, val := range obj {
			switch k {
			case "name":
				c.Name = fmt.Sprint(val)
			case "id":
				if c.Name == "" {
					c.Name = fmt.Sprint(val)
				}
			case "values":
			default:
				c.Values[k] = val
			}
		}
		if c.Name == "" {
			c.Name = "container-" + strconv.Itoa(i)
		}
		out = append(out, c)
	}
	return out
}

// Keys returns the metric names in sorted order.
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m.Values))
	for k := range m.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogEntry is one line of /api/logs or a device log.
type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DeviceID is a device identity. UI-created devices carry a numeric
// millisecond timestamp; discovered resources carry opaque strings.
type DeviceID string

// NewDeviceID formats a numeric device id.
func NewDeviceID(n int64) DeviceID {
	return DeviceID(strconv.FormatInt(n, 10))
}

// Int64 returns the numeric form of the id, if it has one.
func (id DeviceID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

func (id DeviceID) String() string {
	return string(id)
}

// MarshalJSON writes canonical integer ids as JSON numbers. Anything else,
// including "007" or "+5", stays a string so it survives a round trip.
func (id DeviceID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int64(); ok && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts JSON numbers and strings.
func (id *DeviceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DeviceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("device id: %w", err)
	}
	*id = DeviceID(n.String())
	return nil
}

// Device is an inventory item inside a category.
type Device struct {
	ID           DeviceID          `json:"id"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	Provider     string            `json:"provider,omitempty"`
	Region       string            `json:"region,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Metrics      map[string]any    `json:"metrics,omitempty"`
	CostEstimate string            `json:"cost_estimate,omitempty"`
	LastSeen     string            `json:"last_seen,omitempty"`
}

// AssetCategory groups devices. "items" is the canonical key; "resources"
// is the legacy key used by the discovery variants and decodes into Items.
type AssetCategory struct {
	Name  string   `json:"name"`
	Items []Device `json:"items"`
}

// UnmarshalJSON accepts both the items and the legacy resources shape.
func (c *AssetCategory) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name      string   `json:"name"`
		Items     []Device `json:"items"`
		Resources []Device `json:"resources"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Name = aux.Name
	c.Items = aux.Items
	if c.Items == nil {
		c.Items = aux.Resources
	}
	if c.Items == nil {
		c.Items = []Device{}
	}
	return nil
}

// Find returns the device with the given id.
func (c AssetCategory) Find(id DeviceID) (Device, bool) {
	for _, d := range c.Items {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// DeviceKey is the expand/collapse identity of a device within the tree.
func DeviceKey(category string, id DeviceID) string {
	return category + "-" + string(id)
}

// AlertRecord is a client-side threshold alert.
type AlertRecord struct {
	Metric    string  `json:"metric"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// AuditEntry is a remediation action recorded by the backend.
type AuditEntry struct {
	ID        string         `json:"id,omitempty"`
	Timestamp string         `json:"timestamp"`
	Target    string         `json:"target"`
	Action    string         `json:"action"`
	Result    map[string]any `json:"result"`
}

// RemediationRequest is the body of POST /api/remediation.
type RemediationRequest struct {
	Target string         `json:"target"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Anomaly is a z-score outlier reported by /api/anomalies.
type Anomaly struct {
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	Time        string  `json:"time"`
	Remediation string  `json:"remediation"`
	Mean        float64 `json:"mean"`
	Stdev       float64 `json:"stdev"`
	Threshold   float64 `json:"threshold"`
}

// AnomalyReport is the body of GET /api/anomalies.
type AnomalyReport struct {
	Anomalies  []Anomaly `json:"anomalies"`
	WindowSize int       `json:"window_size"`
	CPULatest  float64   `json:"cpu_latest"`
	MemLatest  float64   `json:"mem_latest"`
	Timestamp  string    `json:"timestamp"`
}

// AgentNetwork is the connectivity block of an agent heartbeat.
type AgentNetwork struct {
	ConnectivityOK bool     `json:"connectivity_ok"`
	LatencyMS      *float64 `json:"latency_ms"`
	LastError      *string  `json:"last_error"`
}

// AgentStatus is the last known state of a connected agent.
type AgentStatus struct {
	LastSeen string         `json:"last_seen"`
	Status   string         `json:"status"`
	Network  AgentNetwork   `json:"network"`
	Metrics  map[string]any `json:"metrics,omitempty"`
}

// GeneralSettings is the general settings tab.
type GeneralSettings struct {
	CompanyName          string `json:"company_name"`
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// NetworkSettings is the network settings tab.
type NetworkSettings struct {
	AllowPrivate bool     `json:"allow_private"`
	AllowedCIDRs []string `json:"allowed_cidrs"`
}

// ComplianceSettings is the compliance settings tab.
type ComplianceSettings struct {
	HIPAA bool `json:"hipaa"`
	GDPR  bool `json:"gdpr"`
	SOC2  bool `json:"soc2"`
}

// Role is an RBAC assignment.
type Role struct {
	ID   string `json:"id,omitempty"`
	User string `json:"user"`
	Role string `json:"role"`
}

// APIKey is a stored provider key. Listings only carry KeyHint.
type APIKey struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Key      string `json:"key,omitempty"`
	KeyHint  string `json:"key_hint,omitempty"`
}

// Integration is a configured cloud/provider connection.
type Integration struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Region      string `json:"region,omitempty"`
	Credentials string `json:"credentials,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// IntegrationRequest is the body of POST /api/integrations.
type IntegrationRequest struct {
	Provider    string `json:"provider"`
	Region      string `json:"region,omitempty"`
	Credentials string `json:"credentials"`
}

// MaskSecret keeps the first and last four characters of a secret.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "****" + s[len(s)-4:]
}
