// Package series turns backend metric snapshots into chart-ready numbers.
package series

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"

	"github.com/xreach/acp/pkg/models"
)

// WindowSize is the number of samples kept for the dashboard charts.
const WindowSize = 20

// Metric keys read from the backend snapshot.
const (
	KeyCPU     = "cpu_usage"
	KeyMemory  = "memory_usage"
	KeyNetwork = "network_usage"
	KeyDisk    = "disk_usage"
)

// ParseValue reads a number from a metric value. Numbers and numeric
// strings parse directly. Byte sizes ("1.5 GB") parse to bytes. Otherwise
// the leading numeric prefix is used, so "75%" and "12h" give 75 and 12.
// NaN and infinities are rejected; snapshots must stay JSON encodable.
func ParseValue(v any) (float64, bool) {
	f, ok := parseValue(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseValue(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		return parseString(x)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if looksLikeBytes(s) {
		if n, err := humanize.ParseBytes(s); err == nil {
			return float64(n), true
		}
	}
	return leadingFloat(s)
}

func looksLikeBytes(s string) bool {
	u := strings.ToUpper(strings.TrimRightFunc(s, unicode.IsSpace))
	return strings.HasSuffix(u, "B") && strings.IndexFunc(u, unicode.IsDigit) == 0
}

// leadingFloat mimics parseFloat: the longest numeric prefix wins.
func leadingFloat(s string) (float64, bool) {
	end := 0
	seenDigit, seenDot := false, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			if !seenDigit {
				return 0, false
			}
			f, err := strconv.ParseFloat(s[:end], 64)
			return f, err == nil
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	return f, err == nil
}

// CPU returns the cpu_usage percentage, or 0 when missing.
func CPU(m models.Metrics) float64 {
	v, _ := ParseValue(m.Values[KeyCPU])
	return v
}

// Memory returns the memory_usage percentage, or 0 when missing.
func Memory(m models.Metrics) float64 {
	v, _ := ParseValue(m.Values[KeyMemory])
	return v
}

// Sample is one point of the dashboard history charts.
type Sample struct {
	Time    time.Time `json:"time"`
	CPU     float64   `json:"cpu"`
	Memory  float64   `json:"memory"`
	Network float64   `json:"network"`
	Disk    float64   `json:"disk"`
}

// SampleFrom reads a sample from a snapshot. Missing values are zero.
func SampleFrom(m models.Metrics, at time.Time) Sample {
	get := func(k string) float64 {
		v, _ := ParseValue(m.Values[k])
		return v
	}
	return Sample{
		Time:    at,
		CPU:     get(KeyCPU),
		Memory:  get(KeyMemory),
		Network: get(KeyNetwork),
		Disk:    get(KeyDisk),
	}
}

// Window is a fixed-size rolling history of samples.
type Window struct {
	mu      sync.Mutex
	size    int
	samples []Sample
}

// NewWindow creates a window. A non-positive size uses WindowSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = WindowSize
	}
	return &Window{size: size}
}

// Push appends a sample, dropping the oldest beyond the window size.
func (w *Window) Push(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) >= w.size {
		w.samples = append(w.samples[:0:0], w.samples[len(w.samples)-w.size+1:]...)
	}
	w.samples = append(w.samples, s)
}

// Samples returns a copy, oldest first.
func (w *Window) Samples() []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Sample{}, w.samples...)
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

// Point is one named numeric metric.
type Point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Extract flattens a snapshot into sorted named points. Nested maps become
// dotted names and containers are prefixed with their name. Values that do
// not parse as numbers are skipped.
func Extract(m models.Metrics) []Point {
	var out []Point
	flatten("", m.Values, &out)
	for _, c := range m.Containers {
		flatten(c.Name, c.Values, &out)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func flatten(prefix string, values map[string]any, out *[]Point) {
	for k, v := range values {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		if f, ok := ParseValue(v); ok {
			*out = append(*out, Point{Name: name, Value: f})
		}
	}
}

// Gauge levels.
const (
	LevelOK     = "ok"
	LevelWarn   = "warn"
	LevelDanger = "danger"
)

// GaugeReading is a clamped percentage with its needle angle in degrees,
// 180 at 0% and 0 at 100%.
type GaugeReading struct {
	Percent float64 `json:"percent"`
	Angle   float64 `json:"angle"`
	Level   string  `json:"level"`
}

// Gauge clamps v to 0..100 and classifies it.
func Gauge(v float64) GaugeReading {
	if math.IsNaN(v) {
		v = 0
	}
	p := math.Max(0, math.Min(v, 100))
	level := LevelOK
	switch {
	case p > 80:
		level = LevelDanger
	case p > 60:
		level = LevelWarn
	}
	return GaugeReading{Percent: p, Angle: 180 - p/100*180, Level: level}
}
