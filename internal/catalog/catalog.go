// Package catalog lists the remediation actions available per target.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.yaml.in/yaml/v3"
)

// ErrUnknownAction is returned by Validate for pairs outside the catalog.
var ErrUnknownAction = errors.New("unknown remediation action")

// Action is one remediation action.
type Action struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Catalog maps remediation targets to their actions.
type Catalog struct {
	mu      sync.RWMutex
	targets map[string][]Action
	source  string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return FromNames(map[string][]string{
		"cicd":           {"restart_pipeline", "rollback"},
		"infrastructure": {"scale", "restart_service"},
		"medical":        {"diagnose", "recommend_patch", "alert_team", "restart"},
	}, "default")
}

// FromNames builds a catalog from plain action names.
func FromNames(m map[string][]string, source string) *Catalog {
	targets := make(map[string][]Action, len(m))
	for t, names := range m {
		actions := make([]Action, 0, len(names))
		for _, n := range names {
			actions = append(actions, Action{Name: n})
		}
		targets[t] = actions
	}
	return &Catalog{targets: targets, source: source}
}

// actionList decodes either a list of names or a list of {name, description}.
type actionList []Action

func (l *actionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: actions must be a list", node.Line)
	}
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			*l = append(*l, Action{Name: item.Value})
		case yaml.MappingNode:
			var a Action
			if err := item.Decode(&a); err != nil {
				return err
			}
			if a.Name == "" {
				return fmt.Errorf("line %d: action without name", item.Line)
			}
			*l = append(*l, a)
		default:
			return fmt.Errorf("line %d: unsupported action entry", item.Line)
		}
	}
	return nil
}

type catalogFile struct {
	Targets map[string]actionList `yaml:"targets"`
}

// Parse reads a catalog from YAML.
func Parse(data []byte, source string) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing action catalog %s: %w", source, err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("action catalog %s defines no targets", source)
	}
	targets := make(map[string][]Action, len(f.Targets))
	for t, actions := range f.Targets {
		targets[t] = []Action(actions)
	}
	return &Catalog{targets: targets, source: source}, nil
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading action catalog: %w", err)
	}
	return Parse(data, path)
}

// Source describes where the catalog came from.
func (c *Catalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Targets returns the sorted target names.
func (c *Catalog) Targets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.targets))
	for t := range c.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Actions returns the actions of a target.
func (c *Catalog) Actions(target string) []Action {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Action{}, c.targets[target]...)
}

// Names returns the target to action-name map.
func (c *Catalog) Names() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.targets))
	for t, actions := range c.targets {
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, a.Name)
		}
		out[t] = names
	}
	return out
}

// Validate checks that action belongs to target.
func (c *Catalog) Validate(target, action string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	actions, ok := c.targets[target]
	if !ok {
		return fmt.Errorf("%w: unknown target %q", ErrUnknownAction, target)
	}
	for _, a := range actions {
		if a.Name == action {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not an action of %q", ErrUnknownAction, action, target)
}

// Fetcher returns the backend's target to actions map.
type Fetcher interface {
	RemediationActions(ctx context.Context) (map[string][]string, error)
}

// Sync replaces the catalog with the backend's list. An empty or failed
// answer keeps the current catalog.
func (c *Catalog) Sync(ctx context.Context, f Fetcher) error {
	m, err := f.RemediationActions(ctx)
	if err != nil {
		return fmt.Errorf("fetching remediation actions: %w", err)
	}
	if len(m) == 0 {
		return nil
	}
	fresh := FromNames(m, "backend")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets, c.source = fresh.targets, fresh.source
	return nil
}
