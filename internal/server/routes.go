package server

import "net/http"

// RegisterRoutes registers all dashboard routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /ui/v1/pages", s.handlePages)
	mux.HandleFunc("GET /ui/v1/pages/{name...}", s.handlePage)
	mux.HandleFunc("POST /ui/v1/pages/{name...}", s.handleRefreshPage)
	mux.HandleFunc("GET /ui/v1/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /ui/v1/theme", s.handleSetTheme)
	mux.HandleFunc("GET /ui/v1/devices/{category}/{id}", s.handleDevice)
	mux.HandleFunc("GET /ui/v1/export/{format}", s.handleExport)

	// View-local state; nothing reaches the backend.
	mux.HandleFunc("POST /ui/v1/assets/expand", s.handleExpand)
	mux.HandleFunc("PUT /ui/v1/analytics/filter", s.handleAnalyticsFilter)
	mux.HandleFunc("PUT /ui/v1/audit-logs/filter", s.handleAuditFilter)

	if s.opts.ReadOnly {
		return
	}

	mux.HandleFunc("POST /ui/v1/assets/categories", s.handleAddCategory)
	mux.HandleFunc("POST /ui/v1/assets/devices", s.handleAddDevice)
	mux.HandleFunc("DELETE /ui/v1/assets/devices/{category}/{id}", s.handleDeleteDevice)
	mux.HandleFunc("PUT /ui/v1/assets/devices/{category}/{id}/status", s.handleDeviceStatus)
	mux.HandleFunc("POST /ui/v1/assets/sync", s.handleGraphSync)
	mux.HandleFunc("POST /ui/v1/remediation", s.handleRemediate)
	mux.HandleFunc("POST /ui/v1/anomalies/remediate", s.handleAnomalyRemediate)

	mux.HandleFunc("PUT /ui/v1/settings/general", s.handleSaveGeneral)
	mux.HandleFunc("PUT /ui/v1/settings/network", s.handleSaveNetwork)
	mux.HandleFunc("PUT /ui/v1/settings/compliance", s.handleSaveCompliance)
	mux.HandleFunc("POST /ui/v1/settings/roles", s.handleAddRole)
	mux.HandleFunc("DELETE /ui/v1/settings/roles/{id}", s.handleDeleteRole)
	mux.HandleFunc("POST /ui/v1/settings/api-keys", s.handleAddAPIKey)
	mux.HandleFunc("DELETE /ui/v1/settings/api-keys/{id}", s.handleDeleteAPIKey)

	mux.HandleFunc("POST /ui/v1/integrations", s.handleAddIntegration)
	mux.HandleFunc("DELETE /ui/v1/integrations/{id}", s.handleDeleteIntegration)
}
