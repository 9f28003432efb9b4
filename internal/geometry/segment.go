// Package geometry turns a parsed CAD document into millimetre-scale
// segments, per-layer statistics, closed-loop counts and intersection
// counts. Functions here keep no global state; apart from Preprocess writing
// to the logger it is given, they do no I/O.
package geometry

import "math"

// Segment is a straight piece in millimetres, the common currency every
// tessellated entity is reduced to.
type Segment struct {
	Layer     string
	StartX    float64
	StartY    float64
	EndX      float64
	EndY      float64
	IsCurve   bool
	Radius    float64 // zero when the segment did not originate from an arc
	HasRadius bool
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	dx := s.EndX - s.StartX
	dy := s.EndY - s.StartY
	return math.Hypot(dx, dy)
}
