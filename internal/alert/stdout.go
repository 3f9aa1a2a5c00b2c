package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// StdoutAlerter prints events to stdout.
type StdoutAlerter struct {
	w io.Writer
}

// NewStdoutAlerter creates a new stdout alerter.
func NewStdoutAlerter() *StdoutAlerter {
	return &StdoutAlerter{w: os.Stdout}
}

// NewWriterAlerter prints events to w.
func NewWriterAlerter(w io.Writer) *StdoutAlerter {
	return &StdoutAlerter{w: w}
}

// Name returns "stdout".
func (s *StdoutAlerter) Name() string {
	return "stdout"
}

// Send prints the event.
func (s *StdoutAlerter) Send(_ context.Context, event Event) error {
	icon := severityIcon(event.Severity)
	ts := event.Timestamp.Format(time.RFC3339)

	_, err := fmt.Fprintf(s.w, "%s [%s] %s %s: %s\n", icon, ts, event.EventType, event.Metric, event.Message)
	return err
}

func severityIcon(severity string) string {
	switch severity {
	case "critical":
		return "[CRIT]"
	case "warning":
		return "[WARN]"
	case "info":
		return "[INFO]"
	default:
		return "[----]"
	}
}
