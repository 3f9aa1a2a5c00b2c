// Package views holds one state container per dashboard page. A page is
// refreshed by a poller while it is mounted; its snapshot is what the UI
// renders.
package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xreach/acp/internal/assets"
	"github.com/xreach/acp/internal/poller"
)

// Static page names.
const (
	PageDashboard    = "dashboard"
	PageAlerts       = "alerts"
	PageLogs         = "logs"
	PageRemediation  = "remediation"
	PageAssets       = "assets"
	PageDiscovery    = "discovery"
	PageAnalytics    = "analytics"
	PageSettings     = "settings"
	PageAuditLogs    = "audit-logs"
	PageIntegrations = "integrations"
	PageAnomalies    = "anomalies"
)

// Prefixes of parameterized pages: "agent/<id>" and "device/<category>/<id>".
const (
	PrefixAgent  = "agent"
	PrefixDevice = "device"
)

var (
	// ErrUnknownPage is returned for names that match no page.
	ErrUnknownPage = errors.New("unknown page")
	// ErrInvalidInput is returned when a form is incomplete.
	ErrInvalidInput = assets.ErrInvalidInput
)

// Page is a view state container.
type Page interface {
	Name() string
	Interval() time.Duration
	// Refresh fetches fresh data. Failures set the page's fallback state
	// and are returned for logging only.
	Refresh(ctx context.Context) error
	Snapshot() any
}

// Meta is embedded in every snapshot.
type Meta struct {
	Page      string    `json:"page"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// status is the bookkeeping shared by all pages.
type status struct {
	name     string
	interval time.Duration

	mu      sync.RWMutex
	updated time.Time
	errMsg  string
}

func newStatus(name string, interval time.Duration) status {
	return status{name: name, interval: interval}
}

func (s *status) Name() string            { return s.name }
func (s *status) Interval() time.Duration { return s.interval }

func (s *status) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = time.Now().UTC()
	s.errMsg = ""
	if err != nil {
		s.errMsg = err.Error()
	}
}

func (s *status) meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Meta{Page: s.name, UpdatedAt: s.updated, Error: s.errMsg}
}

// Factory builds a parameterized page from the part of its name after the
// prefix.
type Factory func(rest string) (Page, error)

type entry struct {
	page    Page
	poller  *poller.Poller
	refs    int
	dynamic bool
	subs    map[int]chan struct{}
}

// Registry mounts pages with reference counting: the first Acquire starts
// the page's poller and the last Release stops it.
type Registry struct {
	ctx    context.Context
	logger *slog.Logger

	mu        sync.Mutex
	pages     map[string]*entry
	factories map[string]Factory
	nextSub   int
}

// NewRegistry creates a registry. Pollers run under ctx.
func NewRegistry(ctx context.Context, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:       ctx,
		logger:    logger,
		pages:     make(map[string]*entry),
		factories: make(map[string]Factory),
	}
}

// Register adds a static page.
func (r *Registry) Register(p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[p.Name()] = &entry{page: p, subs: make(map[int]chan struct{})}
}

// RegisterFactory adds a parameterized page family under prefix.
func (r *Registry) RegisterFactory(prefix string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[prefix] = f
}

// Names returns the static page names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name, e := range r.pages {
		if !e.dynamic {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Prefixes returns the registered parameterized page prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// lookup returns the entry for name, creating parameterized pages on
// demand. Callers hold r.mu.
func (r *Registry) lookup(name string) (*entry, error) {
	if e, ok := r.pages[name]; ok {
		return e, nil
	}
	prefix, rest, ok := strings.Cut(name, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	f, ok := r.factories[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	p, err := f(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownPage, name, err)
	}
	e := &entry{page: p, dynamic: true, subs: make(map[int]chan struct{})}
	r.pages[name] = e
	return e, nil
}

// Get returns a page without mounting it.
func (r *Registry) Get(name string) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	r.dropUnused(name, e)
	return e.page, nil
}

// dropUnused forgets a parameterized page once nothing mounts or watches
// it. Callers hold r.mu.
func (r *Registry) dropUnused(name string, e *entry) {
	if e.dynamic && e.refs == 0 && len(e.subs) == 0 && r.pages[name] == e {
		delete(r.pages, name)
	}
}

// Acquire mounts a page, starting its poller on the first reference.
func (r *Registry) Acquire(name string) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if e.refs == 0 {
		p, err := poller.NewEvery(name, e.page.Interval(), r.task(name, e), r.logger)
		if err != nil {
			r.dropUnused(name, e)
			return nil, err
		}
		e.poller = p
		p.Start(r.ctx)
		r.logger.Debug("page mounted", "page", name)
	}
	e.refs++
	return e.page, nil
}

// Release unmounts a page. The last release stops the poller and waits
// for in-flight refreshes, so the page is not updated after Release
// returns.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	e, ok := r.pages[name]
	if !ok || e.refs == 0 {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	p := e.poller
	e.poller = nil
	r.dropUnused(name, e)
	r.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	r.logger.Debug("page unmounted", "page", name)
}

// Mounted reports the reference count of a page.
func (r *Registry) Mounted(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pages[name]; ok {
		return e.refs
	}
	return 0
}

// Refresh refreshes a page once, outside its poll schedule, and notifies
// subscribers.
func (r *Registry) Refresh(ctx context.Context, name string) (Page, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if err := p.Refresh(ctx); err != nil {
		r.logger.Debug("page refresh failed", "page", name, "error", err)
	}
	r.Notify(name)
	return p, nil
}

// Snapshot returns the snapshot of a page, refreshing it first when it is
// not mounted.
func (r *Registry) Snapshot(ctx context.Context, name string) (any, error) {
	r.mu.Lock()
	e, err := r.lookup(name)
	var mounted bool
	if err == nil {
		mounted = e.refs > 0
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !mounted {
		if err := e.page.Refresh(ctx); err != nil {
			r.logger.Debug("page refresh failed", "page", name, "error", err)
		}
		r.mu.Lock()
		r.dropUnused(name, e)
		r.mu.Unlock()
	}
	return e.page.Snapshot(), nil
}

// Subscribe returns a channel that receives a value after every refresh of
// the page. The channel is buffered by one; bursts coalesce.
func (r *Registry) Subscribe(name string) (<-chan struct{}, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	id := r.nextSub
	r.nextSub++
	ch := make(chan struct{}, 1)
	e.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(e.subs, id)
		r.dropUnused(name, e)
	}, nil
}

// StopAll unmounts every page regardless of reference counts.
func (r *Registry) StopAll() {
	r.mu.Lock()
	var pollers []*poller.Poller
	for name, e := range r.pages {
		if e.poller != nil {
			pollers = append(pollers, e.poller)
			e.poller = nil
		}
		e.refs = 0
		if e.dynamic {
			delete(r.pages, name)
		}
	}
	r.mu.Unlock()

	poller.NewGroup(pollers...).Stop()
}

func (r *Registry) task(name string, e *entry) poller.Task {
	return func(ctx context.Context) {
		if err := e.page.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Debug("page refresh failed", "page", name, "error", err)
		}
		if ctx.Err() == nil {
			r.Notify(name)
		}
	}
}

// Notify wakes the subscribers of a page, after an action changed its state
// outside a refresh.
func (r *Registry) Notify(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pages[name]
	if !ok {
		return
	}
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
