package grasp

import (
	"fmt"
)

// Data is the static grasp configuration of a graspable.
// It defines how an actor interacts with the graspable: the ability granted
// while nearby and the distance, angle, and height window for interaction.
type Data struct {
	Name    string `yaml:"name"`
	Ability string `yaml:"ability"` // Ability granted while the graspable is the scan candidate

	ScanDistance  float64 `yaml:"scan_distance"`  // Grant range; abilities are granted before interaction range is reached
	GraspDistance float64 `yaml:"grasp_distance"` // Interaction range
	GraspAngle    float64 `yaml:"grasp_angle"`    // Full cone in degrees around the actor's forward (0 = any)

	MaxHeightAbove float64 `yaml:"max_height_above"` // How far above the actor the grasp point may be (0 = unlimited)
	MaxHeightBelow float64 `yaml:"max_height_below"` // How far below the actor the grasp point may be (0 = unlimited)
	HeightOffset   float64 `yaml:"height_offset"`    // Offset of the grasp point from the graspable's origin
}

// Validate checks the data is usable for scanning.
func (d *Data) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil data", ErrInvalidData)
	}
	if d.Ability == "" {
		return fmt.Errorf("%w: %q has no ability", ErrInvalidData, d.Name)
	}
	if d.ScanDistance <= 0 {
		return fmt.Errorf("%w: %q scan_distance must be positive", ErrInvalidData, d.Name)
	}
	if d.GraspDistance < 0 || d.GraspDistance > d.ScanDistance {
		return fmt.Errorf("%w: %q grasp_distance must be within [0, scan_distance]", ErrInvalidData, d.Name)
	}
	if d.GraspAngle < 0 || d.GraspAngle > 360 {
		return fmt.Errorf("%w: %q grasp_angle must be within [0, 360]", ErrInvalidData, d.Name)
	}
	if d.MaxHeightAbove < 0 || d.MaxHeightBelow < 0 {
		return fmt.Errorf("%w: %q height limits must not be negative", ErrInvalidData, d.Name)
	}
	return nil
}

// HalfAngleCos returns the cosine of half the grasp cone.
// Unrestricted cones return -1 so every direction passes.
func (d *Data) HalfAngleCos() float64 {
	if d.GraspAngle <= 0 || d.GraspAngle >= 360 {
		return -1
	}
	return cosDegrees(d.GraspAngle / 2)
}
