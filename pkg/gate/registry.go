package gate

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionPolicy declares how the gate treats one action.
type ActionPolicy struct {
	Action string `yaml:"action" json:"action"`
	// Governed must be true for the gate to run the action at all.
	Governed bool `yaml:"governed" json:"governed"`
	// ShiftContextExempt actions may omit date and shift code.
	ShiftContextExempt bool `yaml:"shift_context_exempt" json:"shift_context_exempt"`
	RequiresToken      bool `yaml:"requires_token" json:"requires_token"`
	// RequiresPolicy computes readiness for the shift context before the
	// mutation and binds its fingerprint to the audit event.
	RequiresPolicy   bool `yaml:"requires_policy" json:"requires_policy"`
	BlockOnLegalStop bool `yaml:"block_on_legal_stop" json:"block_on_legal_stop"`
}

// Registry is the static table of governed actions.
type Registry struct {
	actions map[string]ActionPolicy
}

// registryFile is the YAML layout of a registry file.
type registryFile struct {
	Actions []ActionPolicy `yaml:"actions"`
}

// NewRegistry builds a registry. Action names must be unique and non-empty.
func NewRegistry(policies ...ActionPolicy) (*Registry, error) {
	r := &Registry{actions: make(map[string]ActionPolicy, len(policies))}
	for _, p := range policies {
		p.Action = strings.TrimSpace(p.Action)
		if p.Action == "" {
			return nil, errors.New("registry entry has no action name")
		}
		if _, dup := r.actions[p.Action]; dup {
			return nil, fmt.Errorf("action %q declared twice", p.Action)
		}
		if p.BlockOnLegalStop && !p.RequiresPolicy {
			return nil, fmt.Errorf("action %q blocks on legal stop but does not require policy", p.Action)
		}
		r.actions[p.Action] = p
	}
	return r, nil
}

// DefaultRegistry returns the built-in governed actions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		ActionPolicy{Action: "resolve_no_go", Governed: true, RequiresPolicy: true},
		ActionPolicy{Action: "assign_employee", Governed: true, RequiresPolicy: true, BlockOnLegalStop: true},
		ActionPolicy{Action: "unassign_employee", Governed: true},
		ActionPolicy{Action: "acknowledge_warning", Governed: true, RequiresToken: true},
		ActionPolicy{Action: "update_station", Governed: true, ShiftContextExempt: true},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry loads the registry from a YAML file.
// If the file does not exist, the default registry is returned.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRegistry(), nil
		}
		return nil, fmt.Errorf("read action registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse action registry: %w", err)
	}
	r, err := NewRegistry(f.Actions...)
	if err != nil {
		return nil, fmt.Errorf("action registry %s: %w", path, err)
	}
	return r, nil
}

// Lookup returns the declaration of action.
func (r *Registry) Lookup(action string) (ActionPolicy, bool) {
	p, ok := r.actions[action]
	return p, ok
}

// Policies returns every declaration sorted by action.
func (r *Registry) Policies() []ActionPolicy {
	out := make([]ActionPolicy, 0, len(r.actions))
	for _, p := range r.actions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}
