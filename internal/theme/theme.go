// Package theme holds the global UI theme and keeps it in sync with the
// preference store.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xreach/acp/internal/storage"
)

// StorageKey is the preference key the theme is persisted under.
const StorageKey = "acp.theme"

// Theme is a UI theme identifier.
type Theme string

const (
	Dark      Theme = "dark"
	Light     Theme = "light"
	Neon      Theme = "neon"
	Cyber     Theme = "cyber"
	Solarized Theme = "solarized"
)

// Default is used when nothing valid is stored.
const Default = Dark

// ErrUnknownTheme is returned by Set for names outside All.
var ErrUnknownTheme = errors.New("unknown theme")

// All lists the supported themes.
func All() []Theme {
	return []Theme{Dark, Light, Neon, Cyber, Solarized}
}

// Parse validates a theme name.
func Parse(s string) (Theme, bool) {
	for _, t := range All() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// CSSClass returns the class applied to the document root.
func CSSClass(t Theme) string {
	return "theme-" + string(t)
}

// Provider holds the current theme. Changes are announced to subscribers
// and written to the store; write failures are logged, not returned.
type Provider struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.RWMutex
	current Theme
	stored  Theme // last value known to be in the store; empty if unknown
	nextID  int
	subs    map[int]func(Theme)
}

// NewProvider loads the stored theme, falling back to def (or Default)
// when the read fails or the stored value is unknown.
func NewProvider(ctx context.Context, store storage.Store, def Theme, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := Parse(string(def)); !ok {
		def = Default
	}
	p := &Provider{store: store, logger: logger, current: def, subs: make(map[int]func(Theme))}

	if store == nil {
		return p
	}
	v, err := store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		logger.Warn("reading stored theme failed, using default", "default", def, "error", err)
	default:
		if t, ok := Parse(v); ok {
			p.current = t
			p.stored = t
		} else {
			logger.Warn("ignoring unknown stored theme", "value", v)
		}
	}
	return p
}

// Theme returns the current theme.
func (p *Provider) Theme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Set changes the theme, notifies subscribers and persists it.
func (p *Provider) Set(ctx context.Context, name string) error {
	t, ok := Parse(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}

	p.mu.Lock()
	changed := p.current != t
	persist := p.store != nil && p.stored != t
	p.current = t
	var subs []func(Theme)
	if changed {
		subs = make([]func(Theme), 0, len(p.subs))
		for _, fn := range p.subs {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	if !persist {
		return nil
	}
	if err := p.store.Set(ctx, StorageKey, string(t)); err != nil {
		p.logger.Warn("persisting theme failed", "theme", t, "error", err)
		return nil
	}
	p.mu.Lock()
	if p.current == t {
		p.stored = t
	}
	p.mu.Unlock()
	return nil
}

// Subscribe registers fn for theme changes and calls it once with the
// current value. The returned func unregisters it.
func (p *Provider) Subscribe(fn func(Theme)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	cur := p.current
	p.mu.Unlock()

	fn(cur)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}
