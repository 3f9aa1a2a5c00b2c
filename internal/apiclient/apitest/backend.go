// Package apitest provides an in-memory AIOps backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/xreach/acp/pkg/models"
)

// Backend mimics the REST API consumed by the dashboard.
type Backend struct {
	mu sync.Mutex

	health     models.HealthStatus
	cpu        float64
	memory     float64
	containers []map[string]any
	logs       []models.LogEntry
	categories map[string]*models.AssetCategory
	order      []string
	discovered []models.Device
	audit      []models.AuditEntry
	anomalies  []models.Anomaly
	agents     map[string]models.AgentStatus
	actions    map[string][]string
	general    models.GeneralSettings
	network    models.NetworkSettings
	compliance models.ComplianceSettings
	roles      []models.Role
	keys       []models.APIKey
	integ      []models.Integration
	seq        int

	calls   map[string]int
	failing map[string]bool
	lastReq map[string][]byte
}

// New returns a backend seeded with a couple of categories.
func New() *Backend {
	b := &Backend{
		health:     models.HealthStatus{Status: models.StatusOK, Timestamp: "2025-01-01T12:00:00"},
		cpu:        12.5,
		memory:     40,
		categories: make(map[string]*models.AssetCategory),
		agents:     make(map[string]models.AgentStatus),
		actions: map[string][]string{
			"cicd":           {"restart_pipeline", "rollback"},
			"infrastructure": {"scale", "restart_service"},
		},
		general:    models.GeneralSettings{CompanyName: "X-Reach", Theme: "dark", NotificationsEnabled: true},
		network:    models.NetworkSettings{AllowPrivate: true, AllowedCIDRs: []string{"10.0.0.0/24"}},
		compliance: models.ComplianceSettings{HIPAA: true, GDPR: true},
		calls:      make(map[string]int),
		failing:    make(map[string]bool),
		lastReq:    make(map[string][]byte),
	}
	b.logs = []models.LogEntry{{Level: models.LevelInfo, Message: "System initialized.", Timestamp: "2025-01-01T12:00:00"}}
	b.putDevice("servers", models.Device{ID: "1", Name: "API Server", Status: "running"})
	b.putDevice("servers", models.Device{ID: "2", Name: "Database Server", Status: "running"})
	b.putDevice("atms", models.Device{ID: "1", Name: "ATM #101", Status: "online"})
	return b
}

// Start serves the backend until the test ends.
func (b *Backend) Start(t testing.TB) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(b.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// SetMetrics sets the CPU and memory percentages served by /api/metrics.
func (b *Backend) SetMetrics(cpu, memory float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cpu, b.memory = cpu, memory
}

// SetContainers sets the nested containers[] list of the metrics body.
func (b *Backend) SetContainers(c []map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containers = c
}

// SetHealth sets the /api/health body.
func (b *Backend) SetHealth(h models.HealthStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.health = h
}

// AddLog appends an entry to the log buffer.
func (b *Backend) AddLog(e models.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, e)
}

// SetDiscovered sets the flat /api/discovery assets list.
func (b *Backend) SetDiscovered(d []models.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discovered = d
}

// SetAnomalies sets the anomalies reported by /api/anomalies.
func (b *Backend) SetAnomalies(a []models.Anomaly) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.anomalies = a
}

// SetAgent records an agent status.
func (b *Backend) SetAgent(id string, s models.AgentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agents[id] = s
}

// Fail makes requests matching "METHOD /path" answer 500.
func (b *Backend) Fail(route string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[route] = fail
}

// Calls returns how many requests matched "METHOD /path".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// LastBody returns the last request body sent to "METHOD /path".
func (b *Backend) LastBody(route string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastReq[route]
}

// Category returns a copy of a stored category.
func (b *Backend) Category(name string) (models.AssetCategory, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.categories[name]
	if !ok {
		return models.AssetCategory{}, false
	}
	out := models.AssetCategory{Name: c.Name, Items: append([]models.Device(nil), c.Items...)}
	return out, true
}

func (b *Backend) putDevice(category string, d models.Device) {
	c, ok := b.categories[category]
	if !ok {
		c = &models.AssetCategory{Name: category, Items: []models.Device{}}
		b.categories[category] = c
		b.order = append(b.order, category)
	}
	c.Items = append(c.Items, d)
}

func (b *Backend) removeCategory(name string) {
	delete(b.categories, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return prefix + "-" + strconv.Itoa(b.seq)
}

// Handler returns the backend's HTTP handler.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.health)
	})
	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"metrics": b.metricsBody()})
	})
	mux.HandleFunc("GET /api/metrics/json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.metricsBody())
	})
	mux.HandleFunc("GET /api/logs", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out := make([]models.LogEntry, 0, len(b.logs))
		for i := len(b.logs) - 1; i >= 0; i-- {
			if limit > 0 && len(out) == limit {
				break
			}
			out = append(out, b.logs[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": out})
	})
	mux.HandleFunc("GET /api/assets", func(w http.ResponseWriter, _ *http.Request) {
		out := []models.AssetCategory{}
		for _, n := range b.order {
			if c := b.categories[n]; len(c.Items) > 0 {
				out = append(out, *c)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": out})
	})
	mux.HandleFunc("POST /api/assets/category/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := b.categories[name]; ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Category already exists"})
			return
		}
		b.categories[name] = &models.AssetCategory{Name: name, Items: []models.Device{}}
		b.order = append(b.order, name)
		writeJSON(w, http.StatusOK, map[string]any{"status": "category_added", "category": name})
	})
	mux.HandleFunc("POST /api/assets/item/{category}", func(w http.ResponseWriter, r *http.Request) {
		var d models.Device
		if err := json.Unmarshal(b.lastReq[routeKey(r)], &d); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": err.Error()})
			return
		}
		b.putDevice(r.PathValue("category"), d)
		writeJSON(w, http.StatusOK, map[string]any{"status": "device_added", "device": d})
	})
	mux.HandleFunc("DELETE /api/assets/item/{category}/{id}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("category")
		c, ok := b.categories[name]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Category not found"})
			return
		}
		id := models.DeviceID(r.PathValue("id"))
		for i, d := range c.Items {
			if d.ID == id {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				if len(c.Items) == 0 {
					b.removeCategory(name)
				}
				writeJSON(w, http.StatusOK, map[string]any{"status": "device_removed", "device": d})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"error": "Device not found"})
	})
	mux.HandleFunc("POST /api/assets/item/{category}/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		c, ok := b.categories[r.PathValue("category")]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Category not found"})
			return
		}
		id := models.DeviceID(r.PathValue("id"))
		for i := range c.Items {
			if c.Items[i].ID == id {
				c.Items[i].Status = r.URL.Query().Get("status")
				writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "device": c.Items[i]})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"error": "Device not found"})
	})
	mux.HandleFunc("GET /api/assets/{category}/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		d, ok := b.device(r.PathValue("category"), r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Device not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device":  d,
			"metrics": map[string]any{"cpu": "42%", "uptime": "12h", "timestamp": "2025-01-01T12:00:00"},
		})
	})
	mux.HandleFunc("GET /api/assets/{category}/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		d, ok := b.device(r.PathValue("category"), r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Device not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device": d,
			"logs":   []models.LogEntry{{Timestamp: "2025-01-01T12:00:00", Message: "Health check OK"}},
		})
	})
	mux.HandleFunc("GET /api/discovery", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"assets": nonNil(b.discovered)})
	})
	mux.HandleFunc("GET /api/overview", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"assets":    len(b.order),
			"anomalies": len(b.anomalies),
			"audit":     len(b.audit),
		})
	})
	mux.HandleFunc("GET /api/agent", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"agents": b.agents})
	})
	mux.HandleFunc("GET /api/anomalies", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.AnomalyReport{
			Anomalies:  nonNil(b.anomalies),
			WindowSize: 20,
			CPULatest:  b.cpu,
			MemLatest:  b.memory,
			Timestamp:  "Wed Jan  1 12:00:00 2025",
		})
	})
	mux.HandleFunc("POST /api/remediation", func(w http.ResponseWriter, r *http.Request) {
		var req models.RemediationRequest
		if err := json.Unmarshal(b.lastReq[routeKey(r)], &req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": err.Error()})
			return
		}
		actions, ok := b.actions[req.Target]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"error": "Unsupported remediation target " + req.Target})
			return
		}
		result := map[string]any{"status": "done"}
		if !contains(actions, req.Action) {
			result = map[string]any{"error": "Unknown action " + req.Action}
		}
		entry := models.AuditEntry{
			ID:        b.nextID("rem"),
			Timestamp: time.Date(2025, 1, 1, 12, 0, b.seq, 0, time.UTC).Format(time.RFC3339),
			Target:    req.Target,
			Action:    req.Action,
			Result:    result,
		}
		b.audit = append(b.audit, entry)
		writeJSON(w, http.StatusOK, entry)
	})
	mux.HandleFunc("GET /api/remediation/audit", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
			limit = l
		}
		out := b.audit
		if len(out) > limit {
			out = out[len(out)-limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"audit": nonNil(out)})
	})
	mux.HandleFunc("GET /api/remediation/actions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"actions": b.actions})
	})

	b.settingsRoutes(mux)
	b.integrationRoutes(mux)

	return b.record(mux)
}

func (b *Backend) settingsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings/general", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.general)
	})
	mux.HandleFunc("PUT /api/settings/general", func(w http.ResponseWriter, r *http.Request) {
		if decodeInto(w, b.lastReq[routeKey(r)], &b.general) {
			writeJSON(w, http.StatusOK, b.general)
		}
	})
	mux.HandleFunc("GET /api/settings/network", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.network)
	})
	mux.HandleFunc("PUT /api/settings/network", func(w http.ResponseWriter, r *http.Request) {
		if decodeInto(w, b.lastReq[routeKey(r)], &b.network) {
			writeJSON(w, http.StatusOK, b.network)
		}
	})
	mux.HandleFunc("GET /api/settings/compliance", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.compliance)
	})
	mux.HandleFunc("PUT /api/settings/compliance", func(w http.ResponseWriter, r *http.Request) {
		if decodeInto(w, b.lastReq[routeKey(r)], &b.compliance) {
			writeJSON(w, http.StatusOK, b.compliance)
		}
	})
	mux.HandleFunc("GET /api/settings/rbac", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, nonNil(b.roles))
	})
	mux.HandleFunc("POST /api/settings/rbac", func(w http.ResponseWriter, r *http.Request) {
		var role models.Role
		if !decodeInto(w, b.lastReq[routeKey(r)], &role) {
			return
		}
		role.ID = b.nextID("role")
		b.roles = append(b.roles, role)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Role added", "id": role.ID})
	})
	mux.HandleFunc("DELETE /api/settings/rbac/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		for i, role := range b.roles {
			if role.ID == id {
				b.roles = append(b.roles[:i], b.roles[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Role " + id + " removed"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Role not found"})
	})
	mux.HandleFunc("GET /api/settings/api-keys", func(w http.ResponseWriter, _ *http.Request) {
		out := make([]models.APIKey, 0, len(b.keys))
		for _, k := range b.keys {
			out = append(out, models.APIKey{ID: k.ID, Name: k.Name, Provider: k.Provider, KeyHint: models.MaskSecret(k.Key)})
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("POST /api/settings/api-keys", func(w http.ResponseWriter, r *http.Request) {
		var k models.APIKey
		if !decodeInto(w, b.lastReq[routeKey(r)], &k) {
			return
		}
		k.ID = b.nextID("key")
		b.keys = append(b.keys, k)
		writeJSON(w, http.StatusOK, map[string]any{"message": "API Key added", "id": k.ID})
	})
	mux.HandleFunc("DELETE /api/settings/api-keys/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		for i, k := range b.keys {
			if k.ID == id {
				b.keys = append(b.keys[:i], b.keys[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Key " + id + " deleted"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Key not found"})
	})
}

func (b *Backend) integrationRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/integrations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, nonNil(b.integ))
	})
	mux.HandleFunc("POST /api/integrations", func(w http.ResponseWriter, r *http.Request) {
		var req models.IntegrationRequest
		if !decodeInto(w, b.lastReq[routeKey(r)], &req) {
			return
		}
		if len(req.Credentials) < 10 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid credentials"})
			return
		}
		in := models.Integration{
			ID:          b.nextID("int"),
			Provider:    req.Provider,
			Region:      req.Region,
			Credentials: req.Credentials,
			Status:      "connected",
			CreatedAt:   "2025-01-01T12:00:00",
		}
		b.integ = append(b.integ, in)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Integration added", "integration": in})
	})
	mux.HandleFunc("DELETE /api/integrations/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		for i, in := range b.integ {
			if in.ID == id {
				b.integ = append(b.integ[:i], b.integ[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Integration deleted", "id": id})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Integration not found"})
	})
}

// record counts requests, captures bodies, applies failures and serializes
// handler access to the backend state.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		key := routeKey(r)
		b.calls[key]++
		if r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			b.lastReq[key] = body
		}
		if b.failing[key] {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) metricsBody() map[string]any {
	m := map[string]any{
		"cpu_usage":    b.cpu,
		"memory_usage": b.memory,
	}
	if b.containers != nil {
		m["containers"] = b.containers
	}
	return m
}

func (b *Backend) device(category, id string) (models.Device, bool) {
	c, ok := b.categories[category]
	if !ok {
		return models.Device{}, false
	}
	return c.Find(models.DeviceID(id))
}

func routeKey(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func decodeInto(w http.ResponseWriter, body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": fmt.Sprintf("invalid body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
