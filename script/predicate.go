// Package script runs designer-authored tengo predicates, such as the check that
// decides whether a graspable is dead.
package script

import (
	"fmt"
	"sort"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// ResultVar is the variable a predicate script assigns its answer to.
const ResultVar = "result"

// Predicate is a compiled boolean script. Scripts read the declared input
// variables and assign `result`, e.g. `result = health <= 0 || exploding`.
type Predicate struct {
	source   string
	inputs   []string
	compiled *tengo.Compiled
}

// Compile compiles src with the given input variables, all initialised to zero.
func Compile(src string, inputs ...string) (*Predicate, error) {
	s := tengo.NewScript([]byte(src))
	s.SetImports(stdlib.GetModuleMap("math"))
	if err := s.Add(ResultVar, false); err != nil {
		return nil, err
	}
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	for _, name := range sorted {
		if name == ResultVar {
			return nil, fmt.Errorf("script: input %q shadows the result variable", name)
		}
		if err := s.Add(name, 0.0); err != nil {
			return nil, fmt.Errorf("script: declaring %q: %w", name, err)
		}
	}

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}
	return &Predicate{source: src, inputs: sorted, compiled: compiled}, nil
}

// Inputs returns the declared input names.
func (p *Predicate) Inputs() []string {
	return p.inputs
}

// Clone returns an independent copy that can be evaluated separately.
func (p *Predicate) Clone() *Predicate {
	return &Predicate{source: p.source, inputs: p.inputs, compiled: p.compiled.Clone()}
}

// Eval runs the script with vars and returns the result. Inputs missing from
// vars keep their previous value.
func (p *Predicate) Eval(vars map[string]float64) (bool, error) {
	for _, name := range p.inputs {
		v, ok := vars[name]
		if !ok {
			continue
		}
		if err := p.compiled.Set(name, v); err != nil {
			return false, fmt.Errorf("script: set %q: %w", name, err)
		}
	}
	if err := p.compiled.Set(ResultVar, false); err != nil {
		return false, err
	}
	if err := p.compiled.Run(); err != nil {
		return false, fmt.Errorf("script: run: %w", err)
	}
	return p.compiled.Get(ResultVar).Bool(), nil
}
