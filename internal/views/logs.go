package views

import (
	"context"
	"sync"
	"time"

	"github.com/xreach/acp/internal/apiclient"
	"github.com/xreach/acp/pkg/models"
)

// LogsSnapshot is the log tail with a per-level count.
type LogsSnapshot struct {
	Meta
	Logs   []models.LogEntry `json:"logs"`
	Counts map[string]int    `json:"counts"`
}

// Logs polls /api/logs.
type Logs struct {
	status
	api   *apiclient.Client
	limit int

	mu   sync.RWMutex
	logs []models.LogEntry
}

// NewLogs creates the logs page. A non-positive limit uses the backend
// default.
func NewLogs(api *apiclient.Client, interval time.Duration, limit int) *Logs {
	return &Logs{
		status: newStatus(PageLogs, interval),
		api:    api,
		limit:  limit,
		logs:   []models.LogEntry{},
	}
}

func (l *Logs) Refresh(ctx context.Context) error {
	logs, err := l.api.Logs(ctx, l.limit)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logs = []models.LogEntry{}
	}
	l.mu.Lock()
	l.logs = logs
	l.mu.Unlock()
	l.record(err)
	return err
}

func (l *Logs) Snapshot() any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := map[string]int{}
	for _, e := range l.logs {
		counts[e.Level]++
	}
	return LogsSnapshot{
		Meta:   l.meta(),
		Logs:   append([]models.LogEntry{}, l.logs...),
		Counts: counts,
	}
}
