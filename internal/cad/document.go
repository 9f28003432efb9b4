// Package cad holds the parsed-CAD-document model and a minimal ASCII DXF
// reader. No DXF library exists anywhere in the retrieval pack this engine
// was grounded on, so the reader is hand-written against the group-code
// pairs the pipeline actually consumes; it is not a general-purpose DXF
// implementation.
package cad

// Point is a 3-D coordinate; Z is zero for planar entities.
type Point struct {
	X, Y, Z float64
}

// Line is a native straight entity.
type Line struct {
	Layer      string
	Start, End Point
}

// Circle is a full 2π arc.
type Circle struct {
	Layer  string
	Center Point
	Radius float64
}

// Arc is a partial circle, angles in degrees, CCW from the X axis.
type Arc struct {
	Layer                      string
	Center                     Point
	Radius                     float64
	StartAngleDeg, EndAngleDeg float64
}

// Vertex2D is one vertex of a 2-D polyline. Bulge encodes the tangent of a
// quarter of the included angle of the arc to the next vertex; zero means a
// straight segment.
type Vertex2D struct {
	X, Y, Bulge float64
}

// Polyline is a 2-D polyline with optional per-vertex bulge.
type Polyline struct {
	Layer    string
	Vertices []Vertex2D
	Closed   bool
}

// Polyline3D is an old-style 3-D polyline; bulge is not supported on 3-D
// polylines by this format.
type Polyline3D struct {
	Layer    string
	Vertices []Point
	Closed   bool
}

// Spline carries only its control points; the tessellator treats it as a
// control polygon, not a true NURBS evaluation.
type Spline struct {
	Layer         string
	ControlPoints []Point
	Closed        bool
}

// Ellipse stores its defining geometry exactly as DXF group codes carry it:
// a center, a major-axis endpoint relative to the center, and a minor/major
// axis ratio, with a start/end parameter range in radians.
type Ellipse struct {
	Layer             string
	Center            Point
	MajorAxisEndpoint Point
	RatioMinorToMajor float64
	StartParam        float64
	EndParam          float64
}

// Attribute is one tag/value pair attached to a block Insert.
type Attribute struct {
	Tag   string
	Value string
}

// Insert is a block reference, optionally carrying attribute values.
type Insert struct {
	Layer      string
	BlockName  string
	Position   Point
	Attributes []Attribute
}

// Block is a named geometry definition from the DXF BLOCKS section. An
// Insert with a matching BlockName instantiates this geometry at its
// position; Inserts here are nested block references, read the same way a
// top-level INSERT is.
type Block struct {
	Name string

	Lines       []Line
	Arcs        []Arc
	Circles     []Circle
	Polylines   []Polyline
	Polylines3D []Polyline3D
	Splines     []Spline
	Ellipses    []Ellipse
	Inserts     []Insert
}

// Text is either a single-line TEXT or a multi-line MTEXT entity; the
// pipeline treats both the same way once Value is assembled.
type Text struct {
	Layer   string
	Value   string
	IsMText bool
}

// Document is the immutable, parsed CAD document the rest of the pipeline
// consumes. DeclaredUnit is the raw unit name as resolved from the DXF
// header ("" when the document is unitless or carries no $INSUNITS value);
// internal/units.Resolve turns it into a scale factor.
type Document struct {
	DeclaredUnit string

	Lines       []Line
	Arcs        []Arc
	Circles     []Circle
	Polylines   []Polyline
	Polylines3D []Polyline3D
	Splines     []Spline
	Ellipses    []Ellipse
	Inserts     []Insert
	Texts       []Text

	// Blocks holds every named block definition from the BLOCKS section,
	// keyed by block name. An Insert's BlockName looks itself up here to
	// find the geometry it instantiates.
	Blocks map[string]*Block
}
