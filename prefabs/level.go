// Package prefabs loads YAML levels: graspable data assets, graspable and actor
// placements, and a timeline of scripted gameplay events.
package prefabs

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/grasp/ability"
	"github.com/pthm-cable/grasp/grasp"
	"github.com/pthm-cable/grasp/script"
)

var ErrInvalidLevel = errors.New("prefabs: invalid level")

// Vec3Spec is a position or extent in world units.
type Vec3Spec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3Spec) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

type TargetDataSpec struct {
	Kind   string             `yaml:"kind"`
	Values map[string]float64 `yaml:"values"`
}

// GraspableSpec places one graspable box.
type GraspableSpec struct {
	Name       string   `yaml:"name"`
	Data       string   `yaml:"data"` // name of an entry in Level.Data
	Position   Vec3Spec `yaml:"position"`
	HalfExtent Vec3Spec `yaml:"half_extent"`

	// DeadScript is inline tengo; DeadScriptFile is a path relative to the level.
	DeadScript     string             `yaml:"dead_script"`
	DeadScriptFile string             `yaml:"dead_script_file"`
	Vars           map[string]float64 `yaml:"vars"`
	VarRates       map[string]float64 `yaml:"var_rates"` // per-second change applied to Vars

	TargetData []TargetDataSpec `yaml:"target_data"`
}

// ActorSpec places one grasper actor.
type ActorSpec struct {
	Name      string     `yaml:"name"`
	Position  Vec3Spec   `yaml:"position"`
	Heading   float64    `yaml:"heading"` // degrees, 0 = +X
	NetMode   string     `yaml:"net_mode"`
	Speed     float64    `yaml:"speed"`
	Waypoints []Vec3Spec `yaml:"waypoints"`
}

// Event actions.
const (
	ActionPause        = "pause"
	ActionResume       = "resume"
	ActionRequestGrasp = "request_grasp"
	ActionDestroy      = "destroy"
	ActionKill         = "kill"
	ActionRevive       = "revive"
)

// EventSpec is a scripted gameplay event fired at a tick.
// Actor actions name an actor; kill and revive name a graspable.
type EventSpec struct {
	Tick   int32  `yaml:"tick"`
	Action string `yaml:"action"`
	Target string `yaml:"target"`
}

// Level is a parsed level file.
type Level struct {
	Name       string          `yaml:"name"`
	Data       []grasp.Data    `yaml:"data"`
	Graspables []GraspableSpec `yaml:"graspables"`
	Actors     []ActorSpec     `yaml:"actors"`
	Events     []EventSpec     `yaml:"events"`

	fsys fs.FS
}

// LoadLevel reads a level from disk. An empty path loads the embedded default.
func LoadLevel(p string) (*Level, error) {
	if p == "" {
		return loadFS(LevelsFS, DefaultLevel)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("prefabs: resolve %s: %w", p, err)
	}
	return loadFS(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
}

func loadFS(fsys fs.FS, name string) (*Level, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("prefabs: load %s: %w", name, err)
	}
	sub := fsys
	if dir := path.Dir(name); dir != "." {
		if sub, err = fs.Sub(fsys, dir); err != nil {
			return nil, fmt.Errorf("prefabs: load %s: %w", name, err)
		}
	}
	lvl, err := Parse(data, sub)
	if err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", name, err)
	}
	return lvl, nil
}

// Parse decodes and validates a level. Script files resolve against fsys,
// which may be nil when the level has none.
func Parse(data []byte, fsys fs.FS) (*Level, error) {
	var lvl Level
	if err := yaml.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("prefabs: unmarshal: %w", err)
	}
	lvl.fsys = fsys
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	return &lvl, nil
}

// Validate checks data assets, references, scripts, and events.
func (l *Level) Validate() error {
	data := make(map[string]bool, len(l.Data))
	for i := range l.Data {
		d := &l.Data[i]
		if d.Name == "" {
			return fmt.Errorf("%w: data[%d] has no name", ErrInvalidLevel, i)
		}
		if data[d.Name] {
			return fmt.Errorf("%w: duplicate data %q", ErrInvalidLevel, d.Name)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLevel, err)
		}
		data[d.Name] = true
	}

	graspables := make(map[string]bool, len(l.Graspables))
	for i, g := range l.Graspables {
		if g.Name == "" {
			return fmt.Errorf("%w: graspables[%d] has no name", ErrInvalidLevel, i)
		}
		if graspables[g.Name] {
			return fmt.Errorf("%w: duplicate graspable %q", ErrInvalidLevel, g.Name)
		}
		graspables[g.Name] = true
		if !data[g.Data] {
			return fmt.Errorf("%w: graspable %q references unknown data %q", ErrInvalidLevel, g.Name, g.Data)
		}
		if g.DeadScript != "" && g.DeadScriptFile != "" {
			return fmt.Errorf("%w: graspable %q sets both dead_script and dead_script_file", ErrInvalidLevel, g.Name)
		}
		if _, err := l.CompileDeadScript(g); err != nil {
			return fmt.Errorf("%w: graspable %q: %w", ErrInvalidLevel, g.Name, err)
		}
	}

	actors := make(map[string]bool, len(l.Actors))
	for i, a := range l.Actors {
		if a.Name == "" {
			return fmt.Errorf("%w: actors[%d] has no name", ErrInvalidLevel, i)
		}
		if actors[a.Name] {
			return fmt.Errorf("%w: duplicate actor %q", ErrInvalidLevel, a.Name)
		}
		if graspables[a.Name] {
			return fmt.Errorf("%w: actor %q shares a name with a graspable", ErrInvalidLevel, a.Name)
		}
		actors[a.Name] = true
		if _, err := grasp.ParseNetMode(a.NetMode); err != nil {
			return fmt.Errorf("%w: actor %q: %w", ErrInvalidLevel, a.Name, err)
		}
		if a.Speed < 0 || math.IsNaN(a.Speed) {
			return fmt.Errorf("%w: actor %q speed must not be negative", ErrInvalidLevel, a.Name)
		}
	}

	for i, e := range l.Events {
		if e.Tick < 0 {
			return fmt.Errorf("%w: events[%d] tick must not be negative", ErrInvalidLevel, i)
		}
		switch e.Action {
		case ActionPause, ActionResume, ActionRequestGrasp, ActionDestroy:
			if !actors[e.Target] {
				return fmt.Errorf("%w: events[%d] %s targets unknown actor %q", ErrInvalidLevel, i, e.Action, e.Target)
			}
		case ActionKill, ActionRevive:
			if !graspables[e.Target] {
				return fmt.Errorf("%w: events[%d] %s targets unknown graspable %q", ErrInvalidLevel, i, e.Action, e.Target)
			}
		default:
			return fmt.Errorf("%w: events[%d] unknown action %q", ErrInvalidLevel, i, e.Action)
		}
	}
	return nil
}

// DataByName returns the level's data assets keyed by name.
func (l *Level) DataByName() map[string]*grasp.Data {
	out := make(map[string]*grasp.Data, len(l.Data))
	for i := range l.Data {
		out[l.Data[i].Name] = &l.Data[i]
	}
	return out
}

// SortedEvents returns the events ordered by tick, keeping file order within a tick.
func (l *Level) SortedEvents() []EventSpec {
	events := append([]EventSpec(nil), l.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })
	return events
}

// CompileDeadScript compiles g's dead check with its vars as inputs.
// It returns nil when g has no script.
func (l *Level) CompileDeadScript(g GraspableSpec) (*script.Predicate, error) {
	src := g.DeadScript
	if g.DeadScriptFile != "" {
		if l.fsys == nil {
			return nil, fmt.Errorf("no filesystem to read %s", g.DeadScriptFile)
		}
		b, err := fs.ReadFile(l.fsys, path.Clean(filepath.ToSlash(g.DeadScriptFile)))
		if err != nil {
			return nil, err
		}
		src = string(b)
	}
	if src == "" {
		return nil, nil
	}
	inputs := make([]string, 0, len(g.Vars)+len(g.VarRates))
	for name := range g.Vars {
		inputs = append(inputs, name)
	}
	for name := range g.VarRates {
		if _, ok := g.Vars[name]; !ok {
			inputs = append(inputs, name)
		}
	}
	return script.Compile(src, inputs...)
}

// AbilityTargetData converts g's payload for the ability registry.
func (g GraspableSpec) AbilityTargetData() []ability.TargetData {
	if len(g.TargetData) == 0 {
		return nil
	}
	out := make([]ability.TargetData, len(g.TargetData))
	for i, td := range g.TargetData {
		out[i] = ability.TargetData{Kind: td.Kind, Values: td.Values}
	}
	return out
}

// Abilities returns the distinct ability names the level's data grants, sorted.
func (l *Level) Abilities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range l.Data {
		if !seen[d.Ability] {
			seen[d.Ability] = true
			out = append(out, d.Ability)
		}
	}
	sort.Strings(out)
	return out
}
