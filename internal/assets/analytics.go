package assets

import (
	"sort"
	"strings"

	"github.com/xreach/acp/pkg/models"
)

// FilterAll matches any provider or region.
const FilterAll = "All"

// Resource is a device tagged with its category, as listed in the
// drill-down table.
type Resource struct {
	models.Device
	Category string `json:"category"`
}

// Flatten lists every device of every category, in order.
func Flatten(cats []models.AssetCategory) []Resource {
	var out []Resource
	for _, c := range cats {
		for _, d := range c.Items {
			out = append(out, Resource{Device: d, Category: c.Name})
		}
	}
	return out
}

// Filter narrows resources by provider and region. An empty field or
// FilterAll matches everything.
type Filter struct {
	Provider string `json:"provider"`
	Region   string `json:"region"`
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Resource) bool {
	return matches(f.Provider, r.Provider) && matches(f.Region, r.Region)
}

func matches(want, got string) bool {
	return want == "" || want == FilterAll || want == got
}

// Apply returns the resources that pass the filter.
func (f Filter) Apply(rs []Resource) []Resource {
	out := []Resource{}
	for _, r := range rs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Providers returns the sorted distinct providers, FilterAll first.
func Providers(rs []Resource) []string {
	return distinct(rs, func(r Resource) string { return r.Provider })
}

// Regions returns the sorted distinct regions, FilterAll first.
func Regions(rs []Resource) []string {
	return distinct(rs, func(r Resource) string { return r.Region })
}

func distinct(rs []Resource, key func(Resource) string) []string {
	seen := make(map[string]bool)
	var vals []string
	for _, r := range rs {
		k := key(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		vals = append(vals, k)
	}
	sort.Strings(vals)
	return append([]string{FilterAll}, vals...)
}

// CountByCategory returns the device count per category name.
func CountByCategory(cats []models.AssetCategory) map[string]int {
	out := make(map[string]int, len(cats))
	for _, c := range cats {
		out[c.Name] += len(c.Items)
	}
	return out
}

// Summary holds the analytics headline counters.
type Summary struct {
	Servers   int `json:"servers"`
	Databases int `json:"databases"`
	Networks  int `json:"networks"`
	Medical   int `json:"medical"`
	Total     int `json:"total"`
}

// Summarize counts the Compute, Database, Networking and Medical categories.
func Summarize(cats []models.AssetCategory) Summary {
	counts := CountByCategory(cats)
	s := Summary{
		Servers:   counts["Compute"],
		Databases: counts["Database"],
		Networks:  counts["Networking"],
		Medical:   counts["Medical"],
	}
	for _, n := range counts {
		s.Total += n
	}
	return s
}

// Category kinds, used to pick an icon.
const (
	KindServer    = "server"
	KindATM       = "atm"
	KindPOS       = "pos"
	KindGenerator = "generator"
	KindDatabase  = "db"
	KindOther     = "other"
)

// CategoryIcon maps a category name to its kind by case-insensitive
// substring, first match wins.
func CategoryIcon(name string) string {
	n := strings.ToLower(name)
	for _, kind := range []string{KindServer, KindATM, KindPOS, KindGenerator, KindDatabase} {
		if strings.Contains(n, kind) {
			return kind
		}
	}
	return KindOther
}
