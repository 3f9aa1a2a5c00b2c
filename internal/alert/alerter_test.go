package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xreach/acp/pkg/models"
)

func testEvent() Event {
	return EventFromRecord(models.AlertRecord{
		Metric:    MetricCPU,
		Message:   "High CPU usage: 75.0%",
		Severity:  models.SeverityWarning,
		Value:     75,
		Timestamp: "2025-01-01T12:00:00Z",
	}, DefaultWarning)
}

func TestWebhookAlerter_Success(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(server.URL, nil)
	err := alerter.Send(context.Background(), testEvent())
	if err != nil {
		t.Fatal(err)
	}

	if received.EventType != "threshold_exceeded" {
		t.Errorf("event_type = %q, want threshold_exceeded", received.EventType)
	}
	if received.Metric != MetricCPU || received.Value != 75 || received.Threshold != 70 {
		t.Errorf("event = %+v", received)
	}
}

func TestWebhookAlerter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	alerter := NewWebhookAlerter(server.URL, nil)
	err := alerter.Send(context.Background(), testEvent())
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestWebhookAlerter_MinSeverity(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("X-ACP-Severity"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	critical := testEvent()
	critical.Severity = models.SeverityCritical

	tests := []struct {
		min  string
		want []string
	}{
		{"", []string{models.SeverityWarning, models.SeverityCritical}},
		{"warning", []string{models.SeverityWarning, models.SeverityCritical}},
		{" Critical ", []string{models.SeverityCritical}},
	}
	for _, tt := range tests {
		mu.Lock()
		got = nil
		mu.Unlock()
		alerter := NewWebhookAlerter(server.URL, nil, WithMinSeverity(tt.min))
		for _, ev := range []Event{testEvent(), critical} {
			if err := alerter.Send(context.Background(), ev); err != nil {
				t.Fatal(err)
			}
		}
		mu.Lock()
		delivered := strings.Join(got, ",")
		mu.Unlock()
		if delivered != strings.Join(tt.want, ",") {
			t.Errorf("min %q: delivered %s, want %v", tt.min, delivered, tt.want)
		}
	}
}

func TestWebhookAlerter_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewWebhookAlerter(server.URL, nil).Send(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "401: bad token") {
		t.Errorf("err = %v, want status and body", err)
	}
}

func TestWebhookAlerter_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "value" {
			t.Errorf("X-Custom = %q, want value", r.Header.Get("X-Custom"))
		}
		if r.Header.Get("Authorization") != "Bearer token123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := map[string]string{
		"X-Custom":      "value",
		"Authorization": "Bearer token123",
	}
	alerter := NewWebhookAlerter(server.URL, headers)
	if err := alerter.Send(context.Background(), testEvent()); err != nil {
		t.Fatal(err)
	}
}

func TestWebhookAlerter_Name(t *testing.T) {
	a := NewWebhookAlerter("http://example.com", nil)
	if a.Name() != "webhook" {
		t.Errorf("name = %q, want webhook", a.Name())
	}
}

func TestStdoutAlerter_Name(t *testing.T) {
	a := NewStdoutAlerter()
	if a.Name() != "stdout" {
		t.Errorf("name = %q, want stdout", a.Name())
	}
}

func TestStdoutAlerter_Send(t *testing.T) {
	var buf bytes.Buffer
	a := NewWriterAlerter(&buf)
	if err := a.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("stdout send error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[WARN] [2025-01-01T12:00:00Z]") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "High CPU usage: 75.0%") {
		t.Errorf("output missing message: %q", out)
	}
}

func TestEventFromRecord_BadTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ev := EventFromRecord(models.AlertRecord{Timestamp: "garbage"}, 90)
	if ev.Timestamp.Before(before) {
		t.Errorf("timestamp = %v, want now", ev.Timestamp)
	}
}

func TestMulti_DispatchesAll(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wh1 := NewWebhookAlerter(server.URL, nil)
	wh2 := NewWebhookAlerter(server.URL, nil)
	multi := NewMulti(wh1, wh2)

	err := multi.Send(context.Background(), testEvent())
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("multi dispatched to %d, want 2", count)
	}
}

func TestMulti_ReturnsLastError(t *testing.T) {
	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failServer.Close()

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okServer.Close()

	wh1 := NewWebhookAlerter(okServer.URL, nil)
	wh2 := NewWebhookAlerter(failServer.URL, nil)
	multi := NewMulti(wh1, wh2)

	err := multi.Send(context.Background(), testEvent())
	if err == nil {
		t.Error("expected error from failing alerter")
	}
}
