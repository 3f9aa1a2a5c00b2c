// Package graph turns the asset inventory into a category→device topology
// that can be exported as JSON, YAML, DOT or Mermaid, or synchronized to a
// Bolt graph database such as Memgraph.
package graph

import (
	"github.com/xreach/acp/pkg/models"
)

// Node kinds.
const (
	KindCategory = "category"
	KindDevice   = "device"
)

// EdgeContains links a category to each of its devices.
const EdgeContains = "CONTAINS"

// Node is a category or a device.
type Node struct {
	ID       string `json:"id" yaml:"id"`
	Kind     string `json:"kind" yaml:"kind"`
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	DeviceID string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Type string `json:"type" yaml:"type"`
}

// Topology is a full snapshot of the inventory graph.
type Topology struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// CategoryNodeID is the node id of a category.
func CategoryNodeID(name string) string {
	return KindCategory + ":" + name
}

// DeviceNodeID is the node id of a device. Device ids are only unique
// within their category.
func DeviceNodeID(category string, id models.DeviceID) string {
	return KindDevice + ":" + category + "/" + id.String()
}

// Build converts inventory categories into a topology. Empty categories
// are kept as lone nodes.
func Build(cats []models.AssetCategory) Topology {
	t := Topology{Nodes: []Node{}, Edges: []Edge{}}
	for _, c := range cats {
		cid := CategoryNodeID(c.Name)
		t.Nodes = append(t.Nodes, Node{ID: cid, Kind: KindCategory, Name: c.Name})
		for _, d := range c.Items {
			did := DeviceNodeID(c.Name, d.ID)
			t.Nodes = append(t.Nodes, Node{
				ID:       did,
				Kind:     KindDevice,
				Name:     d.Name,
				Category: c.Name,
				DeviceID: d.ID.String(),
				Status:   d.Status,
				Provider: d.Provider,
				Region:   d.Region,
			})
			t.Edges = append(t.Edges, Edge{From: cid, To: did, Type: EdgeContains})
		}
	}
	return t
}

// Count returns the number of category and device nodes.
func (t Topology) Count() (categories, devices int) {
	for _, n := range t.Nodes {
		switch n.Kind {
		case KindCategory:
			categories++
		case KindDevice:
			devices++
		}
	}
	return categories, devices
}
