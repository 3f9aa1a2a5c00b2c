package apiclient

import (
	"context"
	"net/http"

	"github.com/xreach/acp/pkg/models"
)

// Settings tabs under /api/settings/.
const (
	TabGeneral    = "general"
	TabNetwork    = "network"
	TabCompliance = "compliance"
	TabRBAC       = "rbac"
	TabAPIKeys    = "api-keys"
)

func settingsPath(tab string) string {
	return "/api/settings/" + tab
}

func (c *Client) GeneralSettings(ctx context.Context) (models.GeneralSettings, error) {
	var s models.GeneralSettings
	err := c.do(ctx, http.MethodGet, settingsPath(TabGeneral), nil, nil, &s)
	return s, err
}

func (c *Client) SaveGeneralSettings(ctx context.Context, s models.GeneralSettings) (models.GeneralSettings, error) {
	var out models.GeneralSettings
	err := c.do(ctx, http.MethodPut, settingsPath(TabGeneral), nil, s, &out)
	return out, err
}

func (c *Client) NetworkSettings(ctx context.Context) (models.NetworkSettings, error) {
	var s models.NetworkSettings
	err := c.do(ctx, http.MethodGet, settingsPath(TabNetwork), nil, nil, &s)
	return s, err
}

func (c *Client) SaveNetworkSettings(ctx context.Context, s models.NetworkSettings) (models.NetworkSettings, error) {
	var out models.NetworkSettings
	err := c.do(ctx, http.MethodPut, settingsPath(TabNetwork), nil, s, &out)
	return out, err
}

func (c *Client) ComplianceSettings(ctx context.Context) (models.ComplianceSettings, error) {
	var s models.ComplianceSettings
	err := c.do(ctx, http.MethodGet, settingsPath(TabCompliance), nil, nil, &s)
	return s, err
}

func (c *Client) SaveComplianceSettings(ctx context.Context, s models.ComplianceSettings) (models.ComplianceSettings, error) {
	var out models.ComplianceSettings
	err := c.do(ctx, http.MethodPut, settingsPath(TabCompliance), nil, s, &out)
	return out, err
}

// Roles lists RBAC assignments.
func (c *Client) Roles(ctx context.Context) ([]models.Role, error) {
	var out []models.Role
	if err := c.do(ctx, http.MethodGet, settingsPath(TabRBAC), nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// AddRole creates an RBAC assignment and returns its id.
func (c *Client) AddRole(ctx context.Context, user, role string) (string, error) {
	out, err := c.mutate(ctx, http.MethodPost, settingsPath(TabRBAC), nil, map[string]string{"user": user, "role": role})
	if err != nil {
		return "", err
	}
	id, _ := out["id"].(string)
	return id, nil
}

func (c *Client) DeleteRole(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, http.MethodDelete, settingsPath(TabRBAC)+"/"+seg(id), nil, nil)
	return err
}

// APIKeys lists stored keys. The backend only returns a masked hint.
func (c *Client) APIKeys(ctx context.Context) ([]models.APIKey, error) {
	var out []models.APIKey
	if err := c.do(ctx, http.MethodGet, settingsPath(TabAPIKeys), nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// AddAPIKey stores a key and returns its id.
func (c *Client) AddAPIKey(ctx context.Context, k models.APIKey) (string, error) {
	body := map[string]string{"name": k.Name, "provider": k.Provider, "key": k.Key}
	out, err := c.mutate(ctx, http.MethodPost, settingsPath(TabAPIKeys), nil, body)
	if err != nil {
		return "", err
	}
	id, _ := out["id"].(string)
	return id, nil
}

func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, http.MethodDelete, settingsPath(TabAPIKeys)+"/"+seg(id), nil, nil)
	return err
}

// Integrations calls GET /api/integrations.
func (c *Client) Integrations(ctx context.Context) ([]models.Integration, error) {
	var out []models.Integration
	if err := c.do(ctx, http.MethodGet, "/api/integrations", nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// AddIntegration calls POST /api/integrations.
func (c *Client) AddIntegration(ctx context.Context, req models.IntegrationRequest) (models.Integration, error) {
	var body struct {
		Integration models.Integration `json:"integration"`
	}
	err := c.do(ctx, http.MethodPost, "/api/integrations", nil, req, &body)
	return body.Integration, err
}

// DeleteIntegration calls DELETE /api/integrations/{id}.
func (c *Client) DeleteIntegration(ctx context.Context, id string) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/api/integrations/"+seg(id), nil, nil)
	return err
}
