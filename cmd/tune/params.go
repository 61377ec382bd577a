// Package main provides CMA-ES tuning of scan timing and targeting weights.
package main

import (
	"github.com/pthm-cable/grasp/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Scan timing
			{Name: "min_rescan_interval", Path: "scan.min_rescan_interval", Min: 0, Max: 0.5, Default: 0},
			{Name: "error_wait_delay", Path: "scan.error_wait_delay", Min: 0.05, Max: 2.0, Default: 0.5},
			// Targeting
			{Name: "distance_weight", Path: "targeting.distance_weight", Min: 0, Max: 2.0, Default: 1.0},
			{Name: "angle_weight", Path: "targeting.angle_weight", Min: 0, Max: 2.0, Default: 0.5},
			{Name: "max_results", Path: "targeting.max_results", Min: 1, Max: 8, Default: 4},
			// Spatial grid
			{Name: "grid_cell_size", Path: "world.grid_cell_size", Min: 50, Max: 500, Default: 200},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config and recomputes derived values.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)

	cfg.Scan.MinRescanInterval = clamped[0]
	cfg.Scan.ErrorWaitDelay = clamped[1]
	cfg.Targeting.DistanceWeight = clamped[2]
	cfg.Targeting.AngleWeight = clamped[3]
	cfg.Targeting.MaxResults = int(clamped[4] + 0.5)
	cfg.World.GridCellSize = clamped[5]

	return cfg.Refresh()
}

// ExtractFromConfig extracts current parameter values from a Config.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Scan.MinRescanInterval,
		cfg.Scan.ErrorWaitDelay,
		cfg.Targeting.DistanceWeight,
		cfg.Targeting.AngleWeight,
		float64(cfg.Targeting.MaxResults),
		cfg.World.GridCellSize,
	}
}
