// Package ability holds the minimal in-memory ability registry that grasp grants
// into. It tracks which ability specs an actor currently owns and nothing more;
// activation, costs, and cooldowns belong to the host ability system.
package ability

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mlange-42/ark/ecs"
)

var (
	ErrEmptyName      = errors.New("ability: empty ability name")
	ErrUnknownAbility = errors.New("ability: unknown ability")
)

// Handle identifies one granted ability spec. The zero Handle is invalid.
type Handle uint64

// Valid reports whether the handle was issued by a registry.
func (h Handle) Valid() bool {
	return h != 0
}

// TargetData is optional payload a graspable attaches to the ability it grants,
// passed along when the ability is activated.
type TargetData struct {
	Kind   string
	Values map[string]float64
}

// Spec describes an ability granted to an actor.
type Spec struct {
	Name       string
	Source     ecs.Entity // graspable that caused the grant
	TargetData []TargetData
}

// Registry tracks granted ability specs per actor.
type Registry struct {
	catalog map[string]struct{}
	granted map[ecs.Entity]map[Handle]Spec
	next    Handle
}

// NewRegistry creates a registry. A non-empty catalog restricts which ability
// names may be granted.
func NewRegistry(catalog []string) *Registry {
	r := &Registry{granted: make(map[ecs.Entity]map[Handle]Spec)}
	if len(catalog) > 0 {
		r.catalog = make(map[string]struct{}, len(catalog))
		for _, name := range catalog {
			r.catalog[name] = struct{}{}
		}
	}
	return r
}

// Give grants spec to actor and returns the handle needed to clear it.
func (r *Registry) Give(actor ecs.Entity, spec Spec) (Handle, error) {
	if spec.Name == "" {
		return 0, ErrEmptyName
	}
	if r.catalog != nil {
		if _, ok := r.catalog[spec.Name]; !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownAbility, spec.Name)
		}
	}

	r.next++
	h := r.next
	specs := r.granted[actor]
	if specs == nil {
		specs = make(map[Handle]Spec)
		r.granted[actor] = specs
	}
	specs[h] = spec
	return h, nil
}

// Clear removes a granted spec. Returns false if the handle was not granted to actor.
func (r *Registry) Clear(actor ecs.Entity, h Handle) bool {
	specs := r.granted[actor]
	if specs == nil {
		return false
	}
	if _, ok := specs[h]; !ok {
		return false
	}
	delete(specs, h)
	if len(specs) == 0 {
		delete(r.granted, actor)
	}
	return true
}

// Granted returns the specs actor currently owns in grant order.
func (r *Registry) Granted(actor ecs.Entity) []Spec {
	specs := r.granted[actor]
	if len(specs) == 0 {
		return nil
	}
	handles := make([]Handle, 0, len(specs))
	for h := range specs {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	out := make([]Spec, len(handles))
	for i, h := range handles {
		out[i] = specs[h]
	}
	return out
}

// Count returns the number of specs actor currently owns.
func (r *Registry) Count(actor ecs.Entity) int {
	return len(r.granted[actor])
}
