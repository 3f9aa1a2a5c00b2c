// Package assets holds the asset inventory state: categories of devices,
// the expanded device and the pending delete, plus helpers for the
// analytics drill-down.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xreach/acp/pkg/models"
)

// ErrInvalidInput is returned when a form field is missing. No request is
// sent in that case.
var ErrInvalidInput = errors.New("invalid input")

// Backend is the subset of the API client the inventory needs.
type Backend interface {
	Assets(ctx context.Context) ([]models.AssetCategory, error)
	AddCategory(ctx context.Context, name string) error
	AddDevice(ctx context.Context, category string, d models.Device) error
	DeleteDevice(ctx context.Context, category string, id models.DeviceID) error
	UpdateDeviceStatus(ctx context.Context, category string, id models.DeviceID, status string) error
}

// DeleteTarget identifies a device awaiting delete confirmation.
type DeleteTarget struct {
	Category string          `json:"category"`
	ID       models.DeviceID `json:"id"`
}

// Inventory is the Assets page state. Every mutation is followed by a full
// re-fetch; nothing is updated optimistically.
type Inventory struct {
	api    Backend
	logger *slog.Logger
	clock  func() time.Time

	mu         sync.RWMutex
	categories []models.AssetCategory
	expanded   string
	pending    *DeleteTarget
	lastErr    error
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithClock overrides the clock used for device ids.
func WithClock(now func() time.Time) Option {
	return func(i *Inventory) { i.clock = now }
}

// NewInventory creates an empty inventory.
func NewInventory(api Backend, logger *slog.Logger, opts ...Option) *Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Inventory{
		api:        api,
		logger:     logger,
		clock:      time.Now,
		categories: []models.AssetCategory{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Refresh replaces the categories with the backend list. On failure the
// list falls back to empty and the error is returned.
func (i *Inventory) Refresh(ctx context.Context) error {
	cats, err := i.api.Assets(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.lastErr = err
	if err != nil {
		i.categories = []models.AssetCategory{}
		return fmt.Errorf("fetching assets: %w", err)
	}
	i.categories = cats
	return nil
}

// Categories returns every category, including empty ones.
func (i *Inventory) Categories() []models.AssetCategory {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.AssetCategory{}, i.categories...)
}

// Visible returns the categories that have at least one device.
func (i *Inventory) Visible() []models.AssetCategory {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := []models.AssetCategory{}
	for _, c := range i.categories {
		if len(c.Items) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Err returns the last refresh error.
func (i *Inventory) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

// AddCategory creates a category and re-fetches.
func (i *Inventory) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	return i.mutate(ctx, "add category", func() error {
		return i.api.AddCategory(ctx, name)
	})
}

// AddDevice creates a device with a millisecond timestamp id and re-fetches.
func (i *Inventory) AddDevice(ctx context.Context, category, name, status string) (models.DeviceID, error) {
	category, name, status = strings.TrimSpace(category), strings.TrimSpace(name), strings.TrimSpace(status)
	if category == "" || name == "" || status == "" {
		return "", fmt.Errorf("%w: category, name and status are required", ErrInvalidInput)
	}
	id := models.NewDeviceID(i.clock().UnixMilli())
	err := i.mutate(ctx, "add device", func() error {
		return i.api.AddDevice(ctx, category, models.Device{ID: id, Name: name, Status: status})
	})
	return id, err
}

// Delete removes a device without confirmation and re-fetches.
func (i *Inventory) Delete(ctx context.Context, category string, id models.DeviceID) error {
	if category == "" || id == "" {
		return fmt.Errorf("%w: category and id are required", ErrInvalidInput)
	}
	return i.mutate(ctx, "delete device", func() error {
		return i.api.DeleteDevice(ctx, category, id)
	})
}

// SetStatus changes a device status and re-fetches.
func (i *Inventory) SetStatus(ctx context.Context, category string, id models.DeviceID, status string) error {
	status = strings.TrimSpace(status)
	if category == "" || id == "" || status == "" {
		return fmt.Errorf("%w: category, id and status are required", ErrInvalidInput)
	}
	return i.mutate(ctx, "update status", func() error {
		return i.api.UpdateDeviceStatus(ctx, category, id, status)
	})
}

// RequestDelete marks a device for deletion pending confirmation.
func (i *Inventory) RequestDelete(category string, id models.DeviceID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending = &DeleteTarget{Category: category, ID: id}
}

// PendingDelete returns the device awaiting confirmation.
func (i *Inventory) PendingDelete() (DeleteTarget, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.pending == nil {
		return DeleteTarget{}, false
	}
	return *i.pending, true
}

// CancelDelete clears the pending delete.
func (i *Inventory) CancelDelete() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending = nil
}

// ConfirmDelete deletes the pending device. Without one it does nothing.
func (i *Inventory) ConfirmDelete(ctx context.Context) error {
	i.mu.Lock()
	target := i.pending
	i.pending = nil
	i.mu.Unlock()

	if target == nil {
		return nil
	}
	return i.Delete(ctx, target.Category, target.ID)
}

// Toggle expands a device, collapsing any other. Toggling the expanded
// device collapses it. It reports whether the device is now expanded.
func (i *Inventory) Toggle(category string, id models.DeviceID) bool {
	key := models.DeviceKey(category, id)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.expanded == key {
		i.expanded = ""
		return false
	}
	i.expanded = key
	return true
}

// IsExpanded reports whether the device is the expanded one.
func (i *Inventory) IsExpanded(category string, id models.DeviceID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.expanded != "" && i.expanded == models.DeviceKey(category, id)
}

// Expanded returns the expanded device key, or "".
func (i *Inventory) Expanded() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.expanded
}

// mutate runs op and then re-fetches regardless of its outcome.
func (i *Inventory) mutate(ctx context.Context, what string, op func() error) error {
	opErr := op()
	if opErr != nil {
		i.logger.Warn("asset mutation failed", "op", what, "error", opErr)
		opErr = fmt.Errorf("%s: %w", what, opErr)
	}
	refreshErr := i.Refresh(ctx)
	if opErr != nil {
		return opErr
	}
	return refreshErr
}
