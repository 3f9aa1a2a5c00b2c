package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatDOT     = "dot"
	FormatMermaid = "mermaid"
)

// ErrUnknownFormat is returned by Export for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists the supported export formats.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatDOT, FormatMermaid}
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Export renders the topology in the given format.
func Export(t Topology, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ExportJSON(t)
	case FormatYAML, "yml":
		return ExportYAML(t)
	case FormatDOT:
		return ExportDOT(t), nil
	case FormatMermaid:
		return ExportMermaid(t), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ExportJSON returns the topology as indented JSON.
func ExportJSON(t Topology) (string, error) {
	t = nonNil(t)
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportYAML returns the topology as YAML.
func ExportYAML(t Topology) (string, error) {
	t = nonNil(t)
	b, err := yaml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return string(b), nil
}

// ExportDOT returns the topology in Graphviz DOT format.
func ExportDOT(t Topology) string {
	var b strings.Builder
	b.WriteString("digraph acp {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled];\n\n")

	for _, n := range t.Nodes {
		label := n.Name
		if n.Kind == KindDevice && n.Status != "" {
			label = fmt.Sprintf("%s\\n(%s)", n.Name, n.Status)
		}
		fmt.Fprintf(&b, "  %q [label=%q, fillcolor=%q];\n", n.ID, label, nodeColor(n))
	}

	b.WriteString("\n")

	for _, e := range t.Edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.From, e.To, e.Type)
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid returns the topology in Mermaid format.
func ExportMermaid(t Topology) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	for _, n := range t.Nodes {
		id := mermaidSafeID(n.ID)
		if n.Kind == KindCategory {
			fmt.Fprintf(&b, "  %s[(\"%s\")]\n", id, mermaidLabel(n.Name))
			continue
		}
		fmt.Fprintf(&b, "  %s[\"%s (%s)\"]\n", id, mermaidLabel(n.Name), mermaidLabel(n.Status))
	}

	for _, e := range t.Edges {
		fmt.Fprintf(&b, "  %s -->|%s| %s\n", mermaidSafeID(e.From), e.Type, mermaidSafeID(e.To))
	}

	return b.String()
}

func nonNil(t Topology) Topology {
	if t.Nodes == nil {
		t.Nodes = []Node{}
	}
	if t.Edges == nil {
		t.Edges = []Edge{}
	}
	return t
}

func nodeColor(n Node) string {
	if n.Kind == KindCategory {
		return "#D5D8DC"
	}
	switch strings.ToLower(n.Status) {
	case "running", "online", "active", "connected":
		return "#A3E4D7"
	case "stopped", "offline", "error", "failed":
		return "#F1948A"
	case "":
		return "#AED6F1"
	default:
		return "#F9E79F"
	}
}

func mermaidSafeID(id string) string {
	r := strings.NewReplacer(":", "_", ".", "_", "-", "_", "/", "_", " ", "_", "#", "_")
	return r.Replace(id)
}

func mermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
