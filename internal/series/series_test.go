package series

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/xreach/acp/pkg/models"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{42.5, 42.5, true},
		{7, 7, true},
		{int64(9), 9, true},
		{json.Number("3.25"), 3.25, true},
		{"12.5", 12.5, true},
		{"75%", 75, true},
		{" 33.3 % ", 33.3, true},
		{"12h", 12, true},
		{"-4.5C", -4.5, true},
		{"1.5 GB", 1.5e9, true},
		{"512 MiB", 512 * 1024 * 1024, true},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Infinity", 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{map[string]any{"a": 1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseValue(tt.in)
		if ok != tt.wantOK || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseValue(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCPUAndMemory(t *testing.T) {
	m := models.Metrics{Values: map[string]any{"cpu_usage": "81%", "memory_usage": 64.0}}
	if CPU(m) != 81 {
		t.Errorf("CPU = %v", CPU(m))
	}
	if Memory(m) != 64 {
		t.Errorf("Memory = %v", Memory(m))
	}
	if CPU(models.Metrics{}) != 0 {
		t.Error("missing cpu should be 0")
	}
}

func TestSampleFrom_MissingIsZero(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := SampleFrom(models.Metrics{Values: map[string]any{"cpu_usage": 10.0, "disk_usage": "55%"}}, at)
	if s.CPU != 10 || s.Disk != 55 || s.Memory != 0 || s.Network != 0 {
		t.Errorf("sample = %+v", s)
	}
	if !s.Time.Equal(at) {
		t.Errorf("time = %v", s.Time)
	}
}

func TestWindow_KeepsLastTwenty(t *testing.T) {
	w := NewWindow(0)
	for i := 0; i < 25; i++ {
		w.Push(Sample{CPU: float64(i)})
	}
	if w.Len() != WindowSize {
		t.Fatalf("len = %d, want %d", w.Len(), WindowSize)
	}
	s := w.Samples()
	if s[0].CPU != 5 || s[len(s)-1].CPU != 24 {
		t.Errorf("window = %v..%v, want 5..24", s[0].CPU, s[len(s)-1].CPU)
	}
}

func TestExtract(t *testing.T) {
	var m models.Metrics
	data := `{"metrics":{"cpu_usage":"20%","uptime":"3h","host":"api-1","net":{"rx":10,"tx":"5"}},
		"containers":[{"name":"web","cpu":"1.5"}]}`
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatal(err)
	}

	points := Extract(m)
	want := []Point{
		{"cpu_usage", 20},
		{"net.rx", 10},
		{"net.tx", 5},
		{"uptime", 3},
		{"web.cpu", 1.5},
	}
	if len(points) != len(want) {
		t.Fatalf("points = %+v", points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("points[%d] = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestNonFiniteMetricsStayEncodable(t *testing.T) {
	var m models.Metrics
	data := `{"metrics":{"cpu_usage":"NaN","memory_usage":"Infinity","disk_usage":"-Inf","uptime":"3h"}}`
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatal(err)
	}

	if CPU(m) != 0 || Memory(m) != 0 {
		t.Errorf("cpu, memory = %v, %v; want 0, 0", CPU(m), Memory(m))
	}
	points := Extract(m)
	if len(points) != 1 || points[0].Name != "uptime" {
		t.Errorf("points = %+v", points)
	}

	snap := struct {
		Sample Sample
		Points []Point
		CPU    GaugeReading
	}{SampleFrom(m, time.Unix(0, 0)), points, Gauge(CPU(m))}
	if _, err := json.Marshal(snap); err != nil {
		t.Errorf("marshal: %v", err)
	}
}

func TestGauge(t *testing.T) {
	tests := []struct {
		in    float64
		pct   float64
		angle float64
		level string
	}{
		{-5, 0, 180, LevelOK},
		{50, 50, 90, LevelOK},
		{60, 60, 72, LevelOK},
		{61, 61, 70.2, LevelWarn},
		{80, 80, 36, LevelWarn},
		{95, 95, 9, LevelDanger},
		{150, 100, 0, LevelDanger},
		{math.NaN(), 0, 180, LevelOK},
	}
	for _, tt := range tests {
		g := Gauge(tt.in)
		if g.Percent != tt.pct || math.Abs(g.Angle-tt.angle) > 1e-9 || g.Level != tt.level {
			t.Errorf("Gauge(%v) = %+v, want %v/%v/%s", tt.in, g, tt.pct, tt.angle, tt.level)
		}
	}
}
