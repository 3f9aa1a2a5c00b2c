// Package poller runs periodic fetch tasks tied to a view's lifetime.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MinInterval is the shortest accepted polling interval.
const MinInterval = time.Second

// Task is one poll. It should return promptly once ctx is cancelled.
type Task func(ctx context.Context)

// Poller runs a task immediately on Start and then on every tick.
//
// Ticks do not wait for the previous task: each run gets its own goroutine,
// so a slow response can land after a newer one. Stop cancels the context
// handed to in-flight tasks and waits for them.
type Poller struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	doneCh   chan struct{}
	inflight *sync.WaitGroup
}

// New creates a poller. The interval string is parsed with
// time.ParseDuration (e.g. "5s", "1m").
func New(name, interval string, task Task, logger *slog.Logger) (*Poller, error) {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid %s poll interval %q: %w (use Go duration format: 5s, 1m, etc.)", name, interval, err)
	}
	return NewEvery(name, d, task, logger)
}

// NewEvery creates a poller from a parsed interval.
func NewEvery(name string, d time.Duration, task Task, logger *slog.Logger) (*Poller, error) {
	if d < MinInterval {
		return nil, fmt.Errorf("%s poll interval must be at least %s, got %s", name, MinInterval, d)
	}
	if task == nil {
		return nil, fmt.Errorf("%s poller has no task", name)
	}
	return newPoller(name, d, task, logger), nil
}

func newPoller(name string, d time.Duration, task Task, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{name: name, interval: d, task: task, logger: logger}
}

// Name returns the poller's label.
func (p *Poller) Name() string { return p.name }

// Interval returns the tick interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start runs the task once and begins the ticker loop. Starting a running
// poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	wg := &sync.WaitGroup{}
	p.cancel, p.doneCh, p.inflight = cancel, done, wg

	p.spawn(ctx, wg)

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Debug("poller started", "name", p.name, "interval", p.interval.String())

		for {
			select {
			case <-ticker.C:
				p.spawn(ctx, wg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// spawn is only called from Start and the loop goroutine, both of which
// finish before Stop waits on wg.
func (p *Poller) spawn(ctx context.Context, wg *sync.WaitGroup) {
	if ctx.Err() != nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		p.task(ctx)
	}()
}

// Stop cancels the poller and waits for the loop and in-flight tasks to
// exit. No task starts after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done, wg := p.cancel, p.doneCh, p.inflight
	p.cancel, p.doneCh, p.inflight = nil, nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	wg.Wait()
	p.logger.Debug("poller stopped", "name", p.name)
}

// Group starts and stops several pollers together.
type Group struct {
	mu      sync.Mutex
	pollers []*Poller
}

// NewGroup creates a group of pollers.
func NewGroup(pollers ...*Poller) *Group {
	return &Group{pollers: pollers}
}

// Add appends a poller to the group.
func (g *Group) Add(p *Poller) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pollers = append(g.pollers, p)
}

// Start starts every poller in the group.
func (g *Group) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.pollers {
		p.Start(ctx)
	}
}

// Stop stops every poller and waits for all of them.
func (g *Group) Stop() {
	g.mu.Lock()
	pollers := append([]*Poller(nil), g.pollers...)
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
}
