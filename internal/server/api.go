package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/internal/graph"
	"github.com/xreach/acp/internal/theme"
	"github.com/xreach/acp/internal/views"
	"github.com/xreach/acp/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeActionError maps a view action error to a status code. Backend 4xx
// replies keep their code and detail.
func (s *Server) writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	var se *apiclient.StatusError
	var be *apiclient.BackendError
	switch {
	case errors.Is(err, views.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &be):
		writeError(w, http.StatusUnprocessableEntity, be.Message)
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		msg := se.Detail
		if msg == "" {
			msg = http.StatusText(se.Code)
		}
		writeError(w, se.Code, msg)
	default:
		s.logger.Warn("backend action failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pages":     s.registry.Names(),
		"prefixes":  s.registry.Prefixes(),
		"read_only": s.opts.ReadOnly,
	})
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, name string) {
	snap, err := s.registry.Snapshot(r.Context(), name)
	if err != nil {
		if errors.Is(err, views.ErrUnknownPage) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("page snapshot", "page", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, r.PathValue("name"))
}

// handleRefreshPage serves POST /ui/v1/pages/{name}/refresh.
func (s *Server) handleRefreshPage(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("name"), "/refresh")
	if !ok || name == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	p, err := s.registry.Refresh(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, views.PrefixDevice+"/"+r.PathValue("category")+"/"+r.PathValue("id"))
}

func (s *Server) themeBody() map[string]any {
	t := s.themes.Theme()
	return map[string]any{
		"theme":  t,
		"class":  theme.CSSClass(t),
		"themes": theme.All(),
	}
}

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.themeBody())
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.themes.Set(r.Context(), body.Theme); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.themeBody())
}

// inventory returns the current categories, fetching them when the assets
// page is not mounted.
func (s *Server) inventory(r *http.Request) []models.AssetCategory {
	if _, err := s.registry.Snapshot(r.Context(), views.PageAssets); err != nil {
		s.logger.Debug("assets snapshot", "error", err)
	}
	return s.pages.Assets.Inventory().Categories()
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	out, err := graph.Export(graph.Build(s.inventory(r)), format)
	if err != nil {
		if errors.Is(err, graph.ErrUnknownFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("exporting inventory", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", graph.ContentType(format))
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleGraphSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "graph sync disabled (set storage.memgraph.enabled)")
		return
	}
	topo := graph.Build(s.inventory(r))
	if err := s.syncer.Sync(r.Context(), topo); err != nil {
		s.logger.Error("graph sync failed", "error", err)
		writeError(w, http.StatusBadGateway, "graph sync failed")
		return
	}
	cats, devs := topo.Count()
	writeJSON(w, http.StatusOK, map[string]int{"categories": cats, "devices": devs})
}

func (s *Server) assetsSnapshot(w http.ResponseWriter, status int) {
	writeJSON(w, status, s.pages.Assets.Snapshot())
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.pages.Assets.Inventory().AddCategory(r.Context(), body.Name); err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageAssets)
	s.assetsSnapshot(w, http.StatusCreated)
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string `json:"category"`
		Name     string `json:"name"`
		Status   string `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, err := s.pages.Assets.Inventory().AddDevice(r.Context(), body.Category, body.Name, body.Status)
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageAssets)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	inv := s.pages.Assets.Inventory()
	if err := inv.Delete(r.Context(), r.PathValue("category"), models.DeviceID(r.PathValue("id"))); err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageAssets)
	s.assetsSnapshot(w, http.StatusOK)
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	inv := s.pages.Assets.Inventory()
	if err := inv.SetStatus(r.Context(), r.PathValue("category"), models.DeviceID(r.PathValue("id")), body.Status); err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageAssets)
	s.assetsSnapshot(w, http.StatusOK)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string          `json:"category"`
		ID       models.DeviceID `json:"id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Category == "" || body.ID == "" {
		writeError(w, http.StatusBadRequest, "category and id are required")
		return
	}
	expanded := s.pages.Assets.Inventory().Toggle(body.Category, body.ID)
	s.registry.Notify(views.PageAssets)
	writeJSON(w, http.StatusOK, map[string]any{"expanded": expanded, "key": models.DeviceKey(body.Category, body.ID)})
}

func (s *Server) handleAnalyticsFilter(w http.ResponseWriter, r *http.Request) {
	var f assets.Filter
	if !decodeBody(w, r, &f) {
		return
	}
	s.pages.Analytics.SetFilter(f)
	s.registry.Notify(views.PageAnalytics)
	writeJSON(w, http.StatusOK, s.pages.Analytics.Snapshot())
}

func (s *Server) handleAuditFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Severity string `json:"severity"`
		Search   string `json:"search"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Severity {
	case "", views.SeverityAll, views.SeverityInfo, views.SeverityWarn, views.SeverityError:
	default:
		writeError(w, http.StatusBadRequest, "unknown severity "+body.Severity)
		return
	}
	s.pages.AuditLogs.SetFilter(body.Severity, body.Search)
	s.registry.Notify(views.PageAuditLogs)
	writeJSON(w, http.StatusOK, s.pages.AuditLogs.Snapshot())
}

// paramsText accepts params either as a JSON string holding the text the
// user typed or as an inline JSON value.
func paramsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

// handleRemediate always answers 200: failures are part of the result
// object, as the remediation page renders them inline.
func (s *Server) handleRemediate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target string          `json:"target"`
		Action string          `json:"action"`
		Params json.RawMessage `json:"params"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result := s.pages.Remediation.Run(r.Context(), body.Target, body.Action, paramsText(body.Params))
	s.registry.Notify(views.PageRemediation)
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleAnomalyRemediate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type   string `json:"type"`
		Action string `json:"action"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Type == "" || body.Action == "" {
		writeError(w, http.StatusBadRequest, "type and action are required")
		return
	}
	result := s.pages.Anomalies.Remediate(r.Context(), body.Type, body.Action)
	s.registry.Notify(views.PageAnomalies)
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) settingsDone(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageSettings)
	writeJSON(w, http.StatusOK, s.pages.Settings.Snapshot())
}

func (s *Server) handleSaveGeneral(w http.ResponseWriter, r *http.Request) {
	var g models.GeneralSettings
	if !decodeBody(w, r, &g) {
		return
	}
	s.settingsDone(w, r, s.pages.Settings.SaveGeneral(r.Context(), g))
}

func (s *Server) handleSaveNetwork(w http.ResponseWriter, r *http.Request) {
	var n models.NetworkSettings
	if !decodeBody(w, r, &n) {
		return
	}
	s.settingsDone(w, r, s.pages.Settings.SaveNetwork(r.Context(), n))
}

func (s *Server) handleSaveCompliance(w http.ResponseWriter, r *http.Request) {
	var c models.ComplianceSettings
	if !decodeBody(w, r, &c) {
		return
	}
	s.settingsDone(w, r, s.pages.Settings.SaveCompliance(r.Context(), c))
}

func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	var role models.Role
	if !decodeBody(w, r, &role) {
		return
	}
	s.settingsDone(w, r, s.pages.Settings.AddRole(r.Context(), role.User, role.Role))
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	s.settingsDone(w, r, s.pages.Settings.DeleteRole(r.Context(), r.PathValue("id")))
}

func (s *Server) handleAddAPIKey(w http.ResponseWriter, r *http.Request) {
	var k models.APIKey
	if !decodeBody(w, r, &k) {
		return
	}
	s.settingsDone(w, r, s.pages.Settings.AddAPIKey(r.Context(), k))
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	s.settingsDone(w, r, s.pages.Settings.DeleteAPIKey(r.Context(), r.PathValue("id")))
}

func (s *Server) handleAddIntegration(w http.ResponseWriter, r *http.Request) {
	var req models.IntegrationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := s.pages.Integrations.Add(r.Context(), req)
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageIntegrations)
	in.Credentials = models.MaskSecret(in.Credentials)
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Integrations.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeActionError(w, r, err)
		return
	}
	s.registry.Notify(views.PageIntegrations)
	writeJSON(w, http.StatusOK, s.pages.Integrations.Snapshot())
}
