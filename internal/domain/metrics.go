// Package domain holds the data model published by the complexity engine:
// per-layer geometric metrics, the serrilha summary, the corte-seco result,
// image metadata and the final analysis Result. Types here are plain,
// JSON-serializable structs with no behavior beyond small derived-value
// helpers — the pipeline packages (geometry, serrilha, corteseco, scoring,
// render) compute the values, this package only carries them.
package domain

// Extents is the 2-D bounding box of a drawing's segments, in millimetres.
type Extents struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Width returns MaxX - MinX.
func (e Extents) Width() float64 { return e.MaxX - e.MinX }

// Height returns MaxY - MinY.
func (e Extents) Height() float64 { return e.MaxY - e.MinY }

// Area returns the bounding-box area.
func (e Extents) Area() float64 { return e.Width() * e.Height() }

// Perimeter returns the bounding-box perimeter.
func (e Extents) Perimeter() float64 { return 2 * (e.Width() + e.Height()) }

// LayerStats holds the running totals accumulated for one CAD layer.
type LayerStats struct {
	Layer        string  `json:"layer"`
	SemanticType string  `json:"semanticType"`
	EntityCount  int     `json:"entityCount"`
	TotalLength  float64 `json:"totalLength"`
	ClosedLoops  int     `json:"closedLoops"`
}

// EntityCounts tallies how many CAD entities of each kind were processed.
type EntityCounts struct {
	Lines      int `json:"lines"`
	Arcs       int `json:"arcs"`
	Circles    int `json:"circles"`
	Polylines  int `json:"polylines"`
	Polylines3 int `json:"polylines3d"`
	Splines    int `json:"splines"`
	Ellipses   int `json:"ellipses"`
	Inserts    int `json:"inserts"`
	Texts      int `json:"texts"`
}

// QualityReport captures the preprocessor's non-fatal observations plus the
// loop-detector's enrichments.
type QualityReport struct {
	TinyGaps           int            `json:"tinyGaps"`
	Overlaps           int            `json:"overlaps"`
	DanglingEnds       int            `json:"danglingEnds"`
	ClosedLoops        int            `json:"closedLoops"`
	ClosedLoopsByType  map[string]int `json:"closedLoopsByType"`
	ClosedLoopDensity  float64        `json:"closedLoopDensity"`
	DelicateArcCount   int            `json:"delicateArcCount"`
	DelicateArcLength  float64        `json:"delicateArcLength"`
	DelicateArcDensity float64        `json:"delicateArcDensity"`
	Notes              []string       `json:"notes,omitempty"`
	SpecialMaterials   []string       `json:"specialMaterials,omitempty"`
}

// Metrics is the full set of aggregate numbers emitted per analysis. All
// numeric fields are in millimetres.
type Metrics struct {
	UnitName string  `json:"unitName"`
	Extents  Extents `json:"extents"`

	TotalCutLength     float64 `json:"totalCutLength"`
	TotalFoldLength    float64 `json:"totalFoldLength"`
	TotalPerfLength    float64 `json:"totalPerfLength"`
	TotalThreePtLength float64 `json:"totalThreePtLength"`

	ThreePtSegmentCount           int     `json:"threePtSegmentCount"`
	ThreePtCutRatio               float64 `json:"threePtCutRatio"`
	RequiresManualThreePtHandling bool    `json:"requiresManualThreePtHandling"`

	NumCurves        int     `json:"numCurves"`
	NumNodes         int     `json:"numNodes"`
	NumIntersections int     `json:"numIntersections"`
	MinArcRadius     float64 `json:"minArcRadius"`

	EntityCounts EntityCounts          `json:"entityCounts"`
	LayerStats   map[string]LayerStats `json:"layerStats"`

	Quality QualityReport `json:"quality"`

	Serrilha  SerrilhaSummary  `json:"serrilha"`
	CorteSeco CorteSecoSummary `json:"corteSeco"`
}

// TotalSemanticLength sums the four semantic-type totals. It is at most
// TotalLayerLength, and equal to it within floating-point tolerance only when
// no layer is classified "outro", since outro layers count in LayerStats only.
func (m Metrics) TotalSemanticLength() float64 {
	return m.TotalCutLength + m.TotalFoldLength + m.TotalPerfLength + m.TotalThreePtLength
}

// TotalLayerLength sums LayerStats.TotalLength across every layer.
func (m Metrics) TotalLayerLength() float64 {
	var total float64
	for _, ls := range m.LayerStats {
		total += ls.TotalLength
	}
	return total
}
