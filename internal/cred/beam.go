package cred

import "math"

// Point is a detector coordinate in pixels. X runs along columns (fast
// axis), Y along rows.
type Point struct {
	X float64
	Y float64
}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool { return isFinite(p.X) && isFinite(p.Y) }

// NaNPoint marks a frame without a detectable primary beam.
func NaNPoint() Point { return Point{X: math.NaN(), Y: math.NaN()} }

// BeamCenter is the primary-beam position shared by every writer of a job.
type BeamCenter struct {
	Mean Point
	Std  Point

	// PerFrame holds the centroid of each sampled frame keyed by index;
	// frames without a beam map to NaNPoint. Nil for manual centers.
	PerFrame map[int]Point

	// Fallback is true when Mean came from configuration instead of data.
	Fallback bool
}
