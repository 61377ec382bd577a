// Package config provides configuration loading and access for the grasp simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	World     WorldConfig     `yaml:"world"`
	Scan      ScanConfig      `yaml:"scan"`
	Targeting TargetingConfig `yaml:"targeting"`
	Collision CollisionConfig `yaml:"collision"`
	Abilities AbilitiesConfig `yaml:"abilities"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Bookmarks BookmarksConfig `yaml:"bookmarks"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds the fixed simulation step.
type PhysicsConfig struct {
	DT float64 `yaml:"dt"` // Seconds per tick
}

// WorldConfig holds world dimensions used by the spatial grid.
type WorldConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	GridCellSize float64 `yaml:"grid_cell_size"`
}

// ScanConfig holds scan task timing.
type ScanConfig struct {
	ErrorWaitDelay    float64 `yaml:"error_wait_delay"`    // Seconds to wait after a failed submission
	MinRescanInterval float64 `yaml:"min_rescan_interval"` // Minimum seconds between scans (0 = immediate)
	Tag               string  `yaml:"tag"`                 // Tag attached to every scan request
}

// TargetingConfig holds scan backend tuning.
type TargetingConfig struct {
	MaxResults     int     `yaml:"max_results"`     // Results returned per scan, best first
	DistanceWeight float64 `yaml:"distance_weight"` // Score weight for normalized distance
	AngleWeight    float64 `yaml:"angle_weight"`    // Score weight for normalized angle
}

// CollisionConfig holds default collision settings for graspable bodies.
type CollisionConfig struct {
	Mode              string `yaml:"mode"` // profile | object_type | disabled
	Profile           string `yaml:"profile"`
	ObjectType        string `yaml:"object_type"`
	OverlapChannel    string `yaml:"overlap_channel"`
	SetOverlapChannel bool   `yaml:"set_overlap_channel"`
}

// AbilitiesConfig lists the ability names the registry accepts.
// An empty catalog accepts any name.
type AbilitiesConfig struct {
	Catalog []string `yaml:"catalog"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Seconds per stats window
	PerfWindow  int     `yaml:"perf_window"`  // Ticks averaged for perf stats

	BookmarkHistorySize int `yaml:"bookmark_history_size"` // Stats windows kept for bookmark detection
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	ChurnSpike   ChurnSpikeConfig   `yaml:"churn_spike"`
	FailureBurst FailureBurstConfig `yaml:"failure_burst"`
	CoverageDrop CoverageDropConfig `yaml:"coverage_drop"`
	Settled      SettledConfig      `yaml:"settled"`
}

// ChurnSpikeConfig flags windows whose revokes exceed the rolling average.
type ChurnSpikeConfig struct {
	Multiplier float64 `yaml:"multiplier"`
	MinRevokes int     `yaml:"min_revokes"`
}

// FailureBurstConfig flags windows whose failed scans exceed the rolling average.
type FailureBurstConfig struct {
	Multiplier  float64 `yaml:"multiplier"`
	MinFailures int     `yaml:"min_failures"`
}

// CoverageDropConfig flags a fall in active grants from the recent peak.
type CoverageDropConfig struct {
	DropFraction float64 `yaml:"drop_fraction"`
	MinPeak      int     `yaml:"min_peak"`
}

// SettledConfig flags consecutive windows with grants held and no churn.
type SettledConfig struct {
	Windows int `yaml:"windows"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickDuration      time.Duration
	ErrorWaitDelay    time.Duration
	MinRescanInterval time.Duration
	StatsWindowTicks  int32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Refresh validates c and recomputes derived values after fields were changed
// in code.
func (c *Config) Refresh() error {
	if err := c.validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

func (c *Config) validate() error {
	if c.Physics.DT <= 0 {
		return fmt.Errorf("config: physics.dt must be positive, got %v", c.Physics.DT)
	}
	if c.Scan.ErrorWaitDelay < 0 {
		return fmt.Errorf("config: scan.error_wait_delay must not be negative")
	}
	if c.Scan.MinRescanInterval < 0 {
		return fmt.Errorf("config: scan.min_rescan_interval must not be negative")
	}
	switch c.Collision.Mode {
	case "profile", "object_type", "disabled":
	default:
		return fmt.Errorf("config: unknown collision.mode %q", c.Collision.Mode)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TickDuration = seconds(c.Physics.DT)
	c.Derived.ErrorWaitDelay = seconds(c.Scan.ErrorWaitDelay)
	c.Derived.MinRescanInterval = seconds(c.Scan.MinRescanInterval)

	ticks := int32(c.Telemetry.StatsWindow / c.Physics.DT)
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.StatsWindowTicks = ticks

	if c.Targeting.MaxResults <= 0 {
		c.Targeting.MaxResults = 1
	}
	if c.Telemetry.PerfWindow < 1 {
		c.Telemetry.PerfWindow = 60
	}
	if c.World.GridCellSize <= 0 {
		c.World.GridCellSize = 100
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
