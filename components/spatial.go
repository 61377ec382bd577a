package components

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position represents an entity's world position. Z is up.
type Position struct {
	X, Y, Z float64
}

// Vec returns the position as a gonum vector.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// SetVec sets the position from a gonum vector.
func (p *Position) SetVec(v r3.Vec) {
	p.X, p.Y, p.Z = v.X, v.Y, v.Z
}

// Rotation represents an entity's heading in the horizontal plane.
type Rotation struct {
	Heading float64 // radians, 0 = +X
}

// Forward returns the unit facing vector.
func (r Rotation) Forward() r3.Vec {
	return r3.Vec{X: math.Cos(r.Heading), Y: math.Sin(r.Heading)}
}
