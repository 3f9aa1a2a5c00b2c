package alert

import (
	"context"
	"time"

	"github.com/xreach/acp/pkg/models"
)

// Event is a threshold alert as delivered to alerting backends.
type Event struct {
	Source    string    `json:"source"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFromRecord wraps an alert record for delivery.
func EventFromRecord(r models.AlertRecord, threshold float64) Event {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return Event{
		Source:    "acp",
		EventType: "threshold_exceeded",
		Severity:  r.Severity,
		Metric:    r.Metric,
		Value:     r.Value,
		Threshold: threshold,
		Message:   r.Message,
		Timestamp: ts,
	}
}

// Alerter defines the interface for sending alert events.
type Alerter interface {
	// Name returns the alerter identifier.
	Name() string

	// Send dispatches an event to the alerting backend.
	Send(ctx context.Context, event Event) error
}

// Multi sends events to multiple alerters.
type Multi struct {
	alerters []Alerter
}

// NewMulti creates a multi-alerter that dispatches to all backends.
func NewMulti(alerters ...Alerter) *Multi {
	return &Multi{alerters: alerters}
}

func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of configured backends.
func (m *Multi) Len() int {
	return len(m.alerters)
}

// Send dispatches the event to all configured alerters.
func (m *Multi) Send(ctx context.Context, event Event) error {
	var lastErr error
	for _, a := range m.alerters {
		if err := a.Send(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
