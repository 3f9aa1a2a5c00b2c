package views

import (
	"context"
	"sync"
	"time"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/pkg/models"
)

// AssetsSnapshot is the monitored assets tree.
type AssetsSnapshot struct {
	Meta
	Categories    []models.AssetCategory `json:"categories"`
	CategoryNames []string               `json:"category_names"`
	Icons         map[string]string      `json:"icons"`
	Expanded      string                 `json:"expanded"`
	PendingDelete *assets.DeleteTarget   `json:"pending_delete,omitempty"`
}

// Assets wraps the inventory for polling.
type Assets struct {
	status
	inv *assets.Inventory
}

// NewAssets creates the assets page.
func NewAssets(inv *assets.Inventory, interval time.Duration) *Assets {
	return &Assets{status: newStatus(PageAssets, interval), inv: inv}
}

// Inventory exposes the mutations.
func (a *Assets) Inventory() *assets.Inventory { return a.inv }

func (a *Assets) Refresh(ctx context.Context) error {
	err := a.inv.Refresh(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a.record(err)
	return err
}

func (a *Assets) Snapshot() any {
	all := a.inv.Categories()
	names := make([]string, 0, len(all))
	icons := make(map[string]string, len(all))
	for _, c := range all {
		names = append(names, c.Name)
		icons[c.Name] = assets.CategoryIcon(c.Name)
	}
	snap := AssetsSnapshot{
		Meta:          a.meta(),
		Categories:    a.inv.Visible(),
		CategoryNames: names,
		Icons:         icons,
		Expanded:      a.inv.Expanded(),
	}
	if t, ok := a.inv.PendingDelete(); ok {
		snap.PendingDelete = &t
	}
	return snap
}

// DiscoverySnapshot lists discovered resources by category.
type DiscoverySnapshot struct {
	Meta
	Categories []models.AssetCategory `json:"categories"`
	Total      int                    `json:"total"`
}

// Discovery polls /api/discovery.
type Discovery struct {
	status
	api *apiclient.Client

	mu   sync.RWMutex
	cats []models.AssetCategory
}

// NewDiscovery creates the discovery page.
func NewDiscovery(api *apiclient.Client, interval time.Duration) *Discovery {
	return &Discovery{
		status: newStatus(PageDiscovery, interval),
		api:    api,
		cats:   []models.AssetCategory{},
	}
}

func (d *Discovery) Refresh(ctx context.Context) error {
	cats, err := d.api.Discovery(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		cats = []models.AssetCategory{}
	}
	d.mu.Lock()
	d.cats = cats
	d.mu.Unlock()
	d.record(err)
	return err
}

// Categories returns the last discovery result.
func (d *Discovery) Categories() []models.AssetCategory {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.AssetCategory{}, d.cats...)
}

func (d *Discovery) Snapshot() any {
	cats := d.Categories()
	total := 0
	for _, c := range cats {
		total += len(c.Items)
	}
	return DiscoverySnapshot{Meta: d.meta(), Categories: cats, Total: total}
}

// AnalyticsSnapshot has the headline counters and the filtered drill-down.
type AnalyticsSnapshot struct {
	Meta
	Summary    assets.Summary    `json:"summary"`
	ByCategory map[string]int    `json:"by_category"`
	Filter     assets.Filter     `json:"filter"`
	Providers  []string          `json:"providers"`
	Regions    []string          `json:"regions"`
	Resources  []assets.Resource `json:"resources"`
}

// Analytics aggregates the discovery result.
type Analytics struct {
	*Discovery

	fmu    sync.RWMutex
	filter assets.Filter
}

// NewAnalytics creates the analytics page.
func NewAnalytics(api *apiclient.Client, interval time.Duration) *Analytics {
	d := NewDiscovery(api, interval)
	d.status = newStatus(PageAnalytics, interval)
	return &Analytics{
		Discovery: d,
		filter:    assets.Filter{Provider: assets.FilterAll, Region: assets.FilterAll},
	}
}

// SetFilter changes the drill-down filter. Empty fields reset to all.
func (a *Analytics) SetFilter(f assets.Filter) {
	if f.Provider == "" {
		f.Provider = assets.FilterAll
	}
	if f.Region == "" {
		f.Region = assets.FilterAll
	}
	a.fmu.Lock()
	defer a.fmu.Unlock()
	a.filter = f
}

func (a *Analytics) Snapshot() any {
	cats := a.Categories()
	all := assets.Flatten(cats)

	a.fmu.RLock()
	f := a.filter
	a.fmu.RUnlock()

	return AnalyticsSnapshot{
		Meta:       a.meta(),
		Summary:    assets.Summarize(cats),
		ByCategory: assets.CountByCategory(cats),
		Filter:     f,
		Providers:  assets.Providers(all),
		Regions:    assets.Regions(all),
		Resources:  f.Apply(all),
	}
}
