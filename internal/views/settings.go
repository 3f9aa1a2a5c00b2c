package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/pkg/models"
)

// Demo values shown for a settings tab whose fetch failed.
func defaultGeneral() models.GeneralSettings {
	return models.GeneralSettings{CompanyName: "Acme Corp (Demo Data)", Theme: "dark", NotificationsEnabled: true}
}

func defaultNetwork() models.NetworkSettings {
	return models.NetworkSettings{AllowPrivate: true, AllowedCIDRs: []string{"10.0.0.0/16", "192.168.0.0/24 (Demo Data)"}}
}

func defaultCompliance() models.ComplianceSettings {
	return models.ComplianceSettings{HIPAA: true, GDPR: false, SOC2: true}
}

func defaultRoles() []models.Role {
	return []models.Role{
		{ID: "1", User: "admin@corp.com", Role: "admin (Demo Data)"},
		{ID: "2", User: "viewer@corp.com", Role: "viewer (Demo Data)"},
	}
}

func defaultKeys() []models.APIKey {
	return []models.APIKey{
		{ID: "1", Name: "Prometheus", Provider: "infra", KeyHint: "****1234 (Demo Data)"},
		{ID: "2", Name: "Grafana", Provider: "monitoring", KeyHint: "****5678 (Demo Data)"},
	}
}

// SettingsSnapshot holds every tab. Demo lists the tabs showing demo
// values because their fetch failed.
type SettingsSnapshot struct {
	Meta
	General    models.GeneralSettings    `json:"general"`
	Network    models.NetworkSettings    `json:"network"`
	Compliance models.ComplianceSettings `json:"compliance"`
	Roles      []models.Role             `json:"roles"`
	APIKeys    []models.APIKey           `json:"api_keys"`
	Demo       map[string]bool           `json:"demo"`
}

// Settings is the settings page. Each tab is fetched and saved against its
// own endpoint.
type Settings struct {
	status
	api    *apiclient.Client
	logger *slog.Logger

	mu         sync.RWMutex
	general    models.GeneralSettings
	network    models.NetworkSettings
	compliance models.ComplianceSettings
	roles      []models.Role
	keys       []models.APIKey
	demo       map[string]bool
}

// NewSettings creates the settings page with demo values in every tab.
func NewSettings(api *apiclient.Client, interval time.Duration, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{
		status:     newStatus(PageSettings, interval),
		api:        api,
		logger:     logger,
		general:    defaultGeneral(),
		network:    defaultNetwork(),
		compliance: defaultCompliance(),
		roles:      defaultRoles(),
		keys:       defaultKeys(),
		demo: map[string]bool{
			apiclient.TabGeneral: true, apiclient.TabNetwork: true, apiclient.TabCompliance: true,
			apiclient.TabRBAC: true, apiclient.TabAPIKeys: true,
		},
	}
}

func (s *Settings) Refresh(ctx context.Context) error {
	var (
		g                            models.GeneralSettings
		n                            models.NetworkSettings
		c                            models.ComplianceSettings
		roles                        []models.Role
		keys                         []models.APIKey
		gErr, nErr, cErr, rErr, kErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { g, gErr = s.api.GeneralSettings(ctx) })
	wg.Go(func() { n, nErr = s.api.NetworkSettings(ctx) })
	wg.Go(func() { c, cErr = s.api.ComplianceSettings(ctx) })
	wg.Go(func() { roles, rErr = s.api.Roles(ctx) })
	wg.Go(func() { keys, kErr = s.api.APIKeys(ctx) })
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	s.demo = map[string]bool{}
	if gErr != nil {
		g = defaultGeneral()
		s.demo[apiclient.TabGeneral] = true
	}
	if nErr != nil {
		n = defaultNetwork()
		s.demo[apiclient.TabNetwork] = true
	}
	if cErr != nil {
		c = defaultCompliance()
		s.demo[apiclient.TabCompliance] = true
	}
	if rErr != nil {
		roles = defaultRoles()
		s.demo[apiclient.TabRBAC] = true
	}
	if kErr != nil {
		keys = defaultKeys()
		s.demo[apiclient.TabAPIKeys] = true
	}
	s.general, s.network, s.compliance, s.roles, s.keys = g, n, c, roles, keys
	s.mu.Unlock()

	err := errors.Join(gErr, nErr, cErr, rErr, kErr)
	s.record(err)
	return err
}

// save runs op and re-fetches every tab. The op error wins.
func (s *Settings) save(ctx context.Context, tab string, op func() error) error {
	if err := op(); err != nil {
		s.logger.Warn("settings save failed", "tab", tab, "error", err)
		if rerr := s.Refresh(ctx); rerr != nil {
			s.logger.Debug("settings refresh failed", "error", rerr)
		}
		return fmt.Errorf("saving %s settings: %w", tab, err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Debug("settings refresh failed", "error", err)
	}
	return nil
}

// SaveGeneral saves the general tab.
func (s *Settings) SaveGeneral(ctx context.Context, g models.GeneralSettings) error {
	return s.save(ctx, apiclient.TabGeneral, func() error {
		_, err := s.api.SaveGeneralSettings(ctx, g)
		return err
	})
}

// SaveNetwork saves the network tab.
func (s *Settings) SaveNetwork(ctx context.Context, n models.NetworkSettings) error {
	return s.save(ctx, apiclient.TabNetwork, func() error {
		_, err := s.api.SaveNetworkSettings(ctx, n)
		return err
	})
}

// SaveCompliance saves the compliance tab.
func (s *Settings) SaveCompliance(ctx context.Context, c models.ComplianceSettings) error {
	return s.save(ctx, apiclient.TabCompliance, func() error {
		_, err := s.api.SaveComplianceSettings(ctx, c)
		return err
	})
}

// AddRole assigns a role to a user.
func (s *Settings) AddRole(ctx context.Context, user, role string) error {
	user, role = strings.TrimSpace(user), strings.TrimSpace(role)
	if user == "" || role == "" {
		return fmt.Errorf("%w: user and role are required", ErrInvalidInput)
	}
	return s.save(ctx, apiclient.TabRBAC, func() error {
		_, err := s.api.AddRole(ctx, user, role)
		return err
	})
}

// DeleteRole removes a role assignment.
func (s *Settings) DeleteRole(ctx context.Context, id string) error {
	return s.save(ctx, apiclient.TabRBAC, func() error { return s.api.DeleteRole(ctx, id) })
}

// AddAPIKey stores a provider key.
func (s *Settings) AddAPIKey(ctx context.Context, k models.APIKey) error {
	if strings.TrimSpace(k.Name) == "" || strings.TrimSpace(k.Key) == "" {
		return fmt.Errorf("%w: name and key are required", ErrInvalidInput)
	}
	return s.save(ctx, apiclient.TabAPIKeys, func() error {
		_, err := s.api.AddAPIKey(ctx, k)
		return err
	})
}

// DeleteAPIKey removes a stored key.
func (s *Settings) DeleteAPIKey(ctx context.Context, id string) error {
	return s.save(ctx, apiclient.TabAPIKeys, func() error { return s.api.DeleteAPIKey(ctx, id) })
}

func (s *Settings) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	demo := make(map[string]bool, len(s.demo))
	for k, v := range s.demo {
		demo[k] = v
	}
	n := s.network
	n.AllowedCIDRs = append([]string{}, s.network.AllowedCIDRs...)
	return SettingsSnapshot{
		Meta:       s.meta(),
		General:    s.general,
		Network:    n,
		Compliance: s.compliance,
		Roles:      append([]models.Role{}, s.roles...),
		APIKeys:    append([]models.APIKey{}, s.keys...),
		Demo:       demo,
	}
}

var providerKinds = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)aws`), "aws"},
	{regexp.MustCompile(`(?i)azure`), "azure"},
	{regexp.MustCompile(`(?i)gcp`), "gcp"},
	{regexp.MustCompile(`(?i)k8s|kubernetes`), "kubernetes"},
	{regexp.MustCompile(`(?i)onprem|server`), "onprem"},
	{regexp.MustCompile(`(?i)db|database`), "database"},
}

// ProviderKind maps a provider name to its icon kind.
func ProviderKind(provider string) string {
	for _, p := range providerKinds {
		if p.re.MatchString(provider) {
			return p.kind
		}
	}
	return "other"
}

// IntegrationView is an integration with its icon kind.
type IntegrationView struct {
	models.Integration
	Kind string `json:"kind"`
}

// IntegrationsSnapshot lists the configured integrations.
type IntegrationsSnapshot struct {
	Meta
	Integrations []IntegrationView `json:"integrations"`
}

// Integrations polls /api/integrations.
type Integrations struct {
	status
	api    *apiclient.Client
	logger *slog.Logger

	mu    sync.RWMutex
	items []models.Integration
}

// NewIntegrations creates the integrations page.
func NewIntegrations(api *apiclient.Client, interval time.Duration, logger *slog.Logger) *Integrations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrations{
		status: newStatus(PageIntegrations, interval),
		api:    api,
		logger: logger,
		items:  []models.Integration{},
	}
}

func (i *Integrations) Refresh(ctx context.Context) error {
	items, err := i.api.Integrations(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		items = []models.Integration{}
	}
	i.mu.Lock()
	i.items = items
	i.mu.Unlock()
	i.record(err)
	return err
}

// Add connects a provider. Provider and credentials are required.
func (i *Integrations) Add(ctx context.Context, req models.IntegrationRequest) (models.Integration, error) {
	req.Provider = strings.TrimSpace(req.Provider)
	req.Region = strings.TrimSpace(req.Region)
	if req.Provider == "" || req.Credentials == "" {
		return models.Integration{}, fmt.Errorf("%w: provider and credentials are required", ErrInvalidInput)
	}
	out, err := i.api.AddIntegration(ctx, req)
	if err != nil {
		i.logger.Warn("adding integration failed", "provider", req.Provider, "error", err)
	}
	if rerr := i.Refresh(ctx); rerr != nil {
		i.logger.Debug("integrations refresh failed", "error", rerr)
	}
	return out, err
}

// Delete disconnects an integration.
func (i *Integrations) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	err := i.api.DeleteIntegration(ctx, id)
	if err != nil {
		i.logger.Warn("deleting integration failed", "id", id, "error", err)
	}
	if rerr := i.Refresh(ctx); rerr != nil {
		i.logger.Debug("integrations refresh failed", "error", rerr)
	}
	return err
}

func (i *Integrations) Snapshot() any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]IntegrationView, 0, len(i.items))
	for _, it := range i.items {
		out = append(out, IntegrationView{Integration: it, Kind: ProviderKind(it.Provider)})
	}
	return IntegrationsSnapshot{Meta: i.meta(), Integrations: out}
}
