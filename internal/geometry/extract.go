package geometry

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/facasdxf/complexity-engine/internal/cad"
	"github.com/facasdxf/complexity-engine/internal/domain"
)

// insertExplodeDepthLimit bounds the recursive block-insert length estimate.
const insertExplodeDepthLimit = 8

// ExtractConfig bundles the extractor's tunables. LayerMapping maps each
// semantic type to an ordered list of regexes tried, in order, against the
// raw layer name; the first match wins.
type ExtractConfig struct {
	LayerMapping                map[string][]*regexp.Regexp
	SpecialMaterialLayerMapping map[string][]*regexp.Regexp
	ChordTolerance              float64
	DelicateArcRadiusThreshold  float64
	UnitFactor                  float64
}

// LayerAccumulator holds per-layer running totals.
type LayerAccumulator struct {
	Layer        string
	SemanticType string
	EntityCount  int
	TotalLength  float64
	ClosedLoops  int
}

// ExtractResult is the extractor's output.
type ExtractResult struct {
	Segments     []Segment
	Layers       map[string]*LayerAccumulator
	EntityCounts domain.EntityCounts
	Extents      domain.Extents

	TotalCutLength     float64
	TotalFoldLength    float64
	TotalPerfLength    float64
	TotalThreePtLength float64

	NumCurves    int
	MinArcRadius float64
	hasMinRadius bool

	DelicateArcCount   int
	DelicateArcLength  float64

	// SpecialMaterials lists, in first-seen order, every material name whose
	// layer-mapping pattern matched at least one layer in the document.
	SpecialMaterials []string
}

// Extract walks every entity kind in doc, scaled by unitFactor to
// millimetres, and produces the segment list plus per-layer and aggregate
// metrics.
func Extract(doc *cad.Document, cfg ExtractConfig) ExtractResult {
	res := ExtractResult{
		Layers: make(map[string]*LayerAccumulator),
	}

	for _, ln := range doc.Lines {
		res.EntityCounts.Lines++
		sx, sy := ln.Start.X*cfg.UnitFactor, ln.Start.Y*cfg.UnitFactor
		ex, ey := ln.End.X*cfg.UnitFactor, ln.End.Y*cfg.UnitFactor
		res.appendSegment(Segment{Layer: ln.Layer, StartX: sx, StartY: sy, EndX: ex, EndY: ey})
		res.accumulateEntity(ln.Layer, math.Hypot(ex-sx, ey-sy), cfg)
	}

	for _, c := range doc.Circles {
		res.EntityCounts.Circles++
		extractCircle(&res, c, cfg)
	}

	for _, a := range doc.Arcs {
		res.EntityCounts.Arcs++
		extractArc(&res, a, cfg)
	}

	for _, pl := range doc.Polylines {
		res.EntityCounts.Polylines++
		extractPolyline2D(&res, pl, cfg)
	}

	for _, pl := range doc.Polylines3D {
		res.EntityCounts.Polylines3++
		extractPolyline3D(&res, pl, cfg)
	}

	for _, sp := range doc.Splines {
		res.EntityCounts.Splines++
		extractSpline(&res, sp, cfg)
	}

	for _, el := range doc.Ellipses {
		res.EntityCounts.Ellipses++
		extractEllipse(&res, el, cfg)
	}

	for range doc.Inserts {
		res.EntityCounts.Inserts++
	}
	for range doc.Texts {
		res.EntityCounts.Texts++
	}

	res.SpecialMaterials = classifyMaterials(res.Layers, cfg.SpecialMaterialLayerMapping)
	res.Extents = computeExtents(res.Segments)
	return res
}

// classifyMaterials matches every layer present in layers against mapping
// and returns the distinct material names matched, in first-seen order
// when layers are visited in deterministic (sorted-by-name) order. Matching
// itself also walks candidate material names in sorted order, so the result
// does not depend on Go's randomized map iteration.
func classifyMaterials(layers map[string]*LayerAccumulator, mapping map[string][]*regexp.Regexp) []string {
	if len(mapping) == 0 || len(layers) == 0 {
		return nil
	}

	materials := make([]string, 0, len(mapping))
	for m := range mapping {
		materials = append(materials, m)
	}
	sort.Strings(materials)

	layerNames := make([]string, 0, len(layers))
	for l := range layers {
		layerNames = append(layerNames, l)
	}
	sort.Strings(layerNames)

	var result []string
	seen := make(map[string]bool)
	for _, layer := range layerNames {
		for _, material := range materials {
			matched := false
			for _, re := range mapping[material] {
				if re != nil && re.MatchString(layer) {
					matched = true
					break
				}
			}
			if matched && !seen[material] {
				seen[material] = true
				result = append(result, material)
			}
		}
	}
	return result
}

// appendSegment adds seg to the segment list only; it carries no layer or
// length bookkeeping, which is handled once per CAD entity by
// accumulateEntity so a curve tessellated into many pieces still counts as
// one entity and contributes its exact analytic length, not a chord sum.
func (r *ExtractResult) appendSegment(seg Segment) {
	r.Segments = append(r.Segments, seg)
}

func (r *ExtractResult) accumulateEntity(layer string, length float64, cfg ExtractConfig) {
	semType := classifyLayer(layer, cfg.LayerMapping)
	acc := r.Layers[layer]
	if acc == nil {
		acc = &LayerAccumulator{Layer: layer, SemanticType: semType}
		r.Layers[layer] = acc
	}
	acc.EntityCount++
	acc.TotalLength += length

	switch semType {
	case "corte":
		r.TotalCutLength += length
	case "vinco":
		r.TotalFoldLength += length
	case "serrilha", "serrilha_mista":
		r.TotalPerfLength += length
	case "trespt":
		r.TotalThreePtLength += length
	}
}

func (r *ExtractResult) registerClosedLoop(layer string) {
	if acc := r.Layers[layer]; acc != nil {
		acc.ClosedLoops++
	}
}

func (r *ExtractResult) considerRadius(radius float64, cfg ExtractConfig) {
	if radius <= 0 {
		return
	}
	if !r.hasMinRadius || radius < r.MinArcRadius {
		r.MinArcRadius = radius
		r.hasMinRadius = true
	}
	if radius <= cfg.DelicateArcRadiusThreshold+1e-9 {
		r.DelicateArcCount++
	}
}

func (r *ExtractResult) delicateLength(radius, length float64, cfg ExtractConfig) {
	if radius <= cfg.DelicateArcRadiusThreshold+1e-9 {
		r.DelicateArcLength += length
	}
}

func extractArc(r *ExtractResult, a cad.Arc, cfg ExtractConfig) {
	radius := a.Radius * cfg.UnitFactor
	sweepRad := normalizeSweepRad(a.EndAngleDeg-a.StartAngleDeg) * math.Pi / 180
	samples := maxInt(4, int(math.Ceil(sweepRad/(math.Pi/16))))
	startRad := a.StartAngleDeg * math.Pi / 180

	cx, cy := a.Center.X*cfg.UnitFactor, a.Center.Y*cfg.UnitFactor
	var prevX, prevY float64
	for i := 0; i <= samples; i++ {
		t := startRad + sweepRad*float64(i)/float64(samples)
		x := cx + radius*math.Cos(t)
		y := cy + radius*math.Sin(t)
		if i > 0 {
			r.appendSegment(Segment{
				Layer: a.Layer, StartX: prevX, StartY: prevY, EndX: x, EndY: y,
				IsCurve: true, Radius: radius, HasRadius: true,
			})
		}
		prevX, prevY = x, y
	}

	length := radius * sweepRad
	r.accumulateEntity(a.Layer, length, cfg)
	r.NumCurves++
	r.delicateLength(radius, length, cfg)
	r.considerRadius(radius, cfg)
}

func extractCircle(r *ExtractResult, c cad.Circle, cfg ExtractConfig) {
	radius := c.Radius * cfg.UnitFactor
	const samples = 32
	cx, cy := c.Center.X*cfg.UnitFactor, c.Center.Y*cfg.UnitFactor

	var prevX, prevY float64
	for i := 0; i <= samples; i++ {
		t := 2 * math.Pi * float64(i) / samples
		x := cx + radius*math.Cos(t)
		y := cy + radius*math.Sin(t)
		if i > 0 {
			r.appendSegment(Segment{
				Layer: c.Layer, StartX: prevX, StartY: prevY, EndX: x, EndY: y,
				IsCurve: true, Radius: radius, HasRadius: true,
			})
		}
		prevX, prevY = x, y
	}

	length := radius * 2 * math.Pi
	r.accumulateEntity(c.Layer, length, cfg)
	r.NumCurves++
	r.registerClosedLoop(c.Layer)
	r.delicateLength(radius, length, cfg)
	r.considerRadius(radius, cfg)
}

func extractPolyline2D(r *ExtractResult, pl cad.Polyline, cfg ExtractConfig) {
	n := len(pl.Vertices)
	if n < 2 {
		return
	}
	pairs := n - 1
	if pl.Closed {
		pairs = n
	}

	var entityLength float64
	hadCurve := false

	for i := 0; i < pairs; i++ {
		a := pl.Vertices[i]
		b := pl.Vertices[(i+1)%n]
		ax, ay := a.X*cfg.UnitFactor, a.Y*cfg.UnitFactor
		bx, by := b.X*cfg.UnitFactor, b.Y*cfg.UnitFactor

		if math.Abs(a.Bulge) < 1e-9 {
			r.appendSegment(Segment{Layer: pl.Layer, StartX: ax, StartY: ay, EndX: bx, EndY: by})
			entityLength += math.Hypot(bx-ax, by-ay)
			continue
		}

		angle := 4 * math.Atan(a.Bulge)
		chord := math.Hypot(bx-ax, by-ay)
		sinHalf := math.Sin(angle / 2)
		if sinHalf == 0 || chord == 0 {
			r.appendSegment(Segment{Layer: pl.Layer, StartX: ax, StartY: ay, EndX: bx, EndY: by})
			entityLength += chord
			continue
		}
		radius := math.Abs(chord / (2 * sinHalf))

		samples := 4
		if radius > cfg.ChordTolerance {
			ratio := 1 - cfg.ChordTolerance/radius
			if ratio > -1 && ratio < 1 {
				denom := math.Acos(ratio)
				if denom > 1e-9 {
					samples = maxInt(4, minInt(64, int(math.Ceil(math.Abs(angle)/denom))))
				}
			}
		}

		bulgeSegs := tessellateBulge(ax, ay, bx, by, a.Bulge, samples)
		for _, s := range bulgeSegs {
			r.appendSegment(Segment{
				Layer: pl.Layer, StartX: s[0], StartY: s[1], EndX: s[2], EndY: s[3],
				IsCurve: true, Radius: radius, HasRadius: true,
			})
		}
		curveLen := radius * math.Abs(angle)
		entityLength += curveLen
		hadCurve = true
		r.delicateLength(radius, curveLen, cfg)
		r.considerRadius(radius, cfg)
	}

	if hadCurve {
		r.NumCurves++
	}
	r.accumulateEntity(pl.Layer, entityLength, cfg)
	if pl.Closed {
		r.registerClosedLoop(pl.Layer)
	}
}

// tessellateBulge samples the arc implied by a polyline bulge value between
// two vertices into n straight sub-segments.
func tessellateBulge(ax, ay, bx, by, bulge float64, n int) [][4]float64 {
	angle := 4 * math.Atan(bulge)
	chord := math.Hypot(bx-ax, by-ay)
	sinHalf := math.Sin(angle / 2)
	if sinHalf == 0 || chord == 0 {
		return [][4]float64{{ax, ay, bx, by}}
	}
	radius := chord / (2 * sinHalf)

	mx, my := (ax+bx)/2, (ay+by)/2
	dx, dy := bx-ax, by-ay
	h := math.Sqrt(math.Max(radius*radius-(chord/2)*(chord/2), 0))
	sign := 1.0
	if bulge < 0 {
		sign = -1.0
	}
	nx, ny := -dy/chord, dx/chord
	cx, cy := mx+sign*h*nx, my+sign*h*ny

	startAngle := math.Atan2(ay-cy, ax-cx)
	sweep := angle

	segs := make([][4]float64, 0, n)
	prevX, prevY := ax, ay
	for i := 1; i <= n; i++ {
		t := startAngle + sweep*float64(i)/float64(n)
		x := cx + math.Abs(radius)*math.Cos(t)
		y := cy + math.Abs(radius)*math.Sin(t)
		segs = append(segs, [4]float64{prevX, prevY, x, y})
		prevX, prevY = x, y
	}
	return segs
}

func extractPolyline3D(r *ExtractResult, pl cad.Polyline3D, cfg ExtractConfig) {
	n := len(pl.Vertices)
	if n < 2 {
		return
	}
	pairs := n - 1
	if pl.Closed {
		pairs = n
	}
	var entityLength float64
	for i := 0; i < pairs; i++ {
		a := pl.Vertices[i]
		b := pl.Vertices[(i+1)%n]
		ax, ay := a.X*cfg.UnitFactor, a.Y*cfg.UnitFactor
		bx, by := b.X*cfg.UnitFactor, b.Y*cfg.UnitFactor
		r.appendSegment(Segment{Layer: pl.Layer, StartX: ax, StartY: ay, EndX: bx, EndY: by})
		entityLength += math.Hypot(bx-ax, by-ay)
	}
	r.accumulateEntity(pl.Layer, entityLength, cfg)
	if pl.Closed {
		r.registerClosedLoop(pl.Layer)
	}
}

func extractSpline(r *ExtractResult, sp cad.Spline, cfg ExtractConfig) {
	pts := sp.ControlPoints
	if len(pts) < 2 {
		return
	}
	segCount := maxInt(16, 4*len(pts))

	pts2 := make([]point2, len(pts))
	for i, p := range pts {
		pts2[i] = point2{p.X * cfg.UnitFactor, p.Y * cfg.UnitFactor}
	}
	segs, err := resampleBySegmentCount(pts2, sp.Closed, segCount)
	if err != nil {
		return
	}
	var entityLength float64
	for _, s := range segs {
		r.appendSegment(Segment{Layer: sp.Layer, StartX: s[0].x, StartY: s[0].y, EndX: s[1].x, EndY: s[1].y, IsCurve: true})
		entityLength += dist(s[0], s[1])
	}
	r.accumulateEntity(sp.Layer, entityLength, cfg)
	r.NumCurves++
	if sp.Closed {
		r.registerClosedLoop(sp.Layer)
	}
}

func extractEllipse(r *ExtractResult, el cad.Ellipse, cfg ExtractConfig) {
	const samples = 64
	cx, cy := el.Center.X*cfg.UnitFactor, el.Center.Y*cfg.UnitFactor
	majorX, majorY := el.MajorAxisEndpoint.X*cfg.UnitFactor, el.MajorAxisEndpoint.Y*cfg.UnitFactor
	majorLen := math.Hypot(majorX, majorY)
	if majorLen == 0 {
		return
	}
	rotation := math.Atan2(majorY, majorX)
	minorLen := majorLen * el.RatioMinorToMajor

	start, end := el.StartParam, el.EndParam
	if end <= start {
		end = start + 2*math.Pi
	}

	var entityLength float64
	var prevX, prevY float64
	for i := 0; i <= samples; i++ {
		t := start + (end-start)*float64(i)/samples
		ex := majorLen * math.Cos(t)
		ey := minorLen * math.Sin(t)
		x := cx + ex*math.Cos(rotation) - ey*math.Sin(rotation)
		y := cy + ex*math.Sin(rotation) + ey*math.Cos(rotation)
		if i > 0 {
			r.appendSegment(Segment{Layer: el.Layer, StartX: prevX, StartY: prevY, EndX: x, EndY: y, IsCurve: true})
			entityLength += math.Hypot(x-prevX, y-prevY)
		}
		prevX, prevY = x, y
	}
	r.accumulateEntity(el.Layer, entityLength, cfg)
	r.NumCurves++
}

// ExplodeInsertLength estimates a block insert's cut length via a
// depth-bounded recursive sum over its block definition's geometry: the
// block's lines, circles, arcs, 2-D and 3-D polylines and splines contribute
// their analytic length (ellipses in the block are not counted), and every
// nested Insert recurses into its own block, capped at
// insertExplodeDepthLimit levels to guard against a block that (directly or
// indirectly) references itself. unitFactor scales the block's native
// coordinates the same way Extract scales top-level entities.
func ExplodeInsertLength(doc *cad.Document, ins cad.Insert, depth int, unitFactor float64) float64 {
	if depth >= insertExplodeDepthLimit || doc == nil {
		return 0
	}
	block := doc.Blocks[ins.BlockName]
	if block == nil {
		return 0
	}

	var total float64
	for _, ln := range block.Lines {
		sx, sy := ln.Start.X*unitFactor, ln.Start.Y*unitFactor
		ex, ey := ln.End.X*unitFactor, ln.End.Y*unitFactor
		total += math.Hypot(ex-sx, ey-sy)
	}
	for _, c := range block.Circles {
		total += 2 * math.Pi * c.Radius * unitFactor
	}
	for _, a := range block.Arcs {
		sweepRad := normalizeSweepRad(a.EndAngleDeg-a.StartAngleDeg) * math.Pi / 180
		total += a.Radius * unitFactor * sweepRad
	}
	for _, pl := range block.Polylines {
		total += polylineNativeLength(pl, unitFactor)
	}
	for _, pl := range block.Polylines3D {
		total += polyline3DNativeLength(pl, unitFactor)
	}
	for _, sp := range block.Splines {
		total += splineNativeLength(sp, unitFactor)
	}
	for _, nested := range block.Inserts {
		total += ExplodeInsertLength(doc, nested, depth+1, unitFactor)
	}
	return total
}

// polylineNativeLength sums a 2-D polyline's chord/bulge-arc length without
// tessellating it, for use where only the total length matters.
func polylineNativeLength(pl cad.Polyline, unitFactor float64) float64 {
	n := len(pl.Vertices)
	if n < 2 {
		return 0
	}
	pairs := n - 1
	if pl.Closed {
		pairs = n
	}

	var total float64
	for i := 0; i < pairs; i++ {
		a := pl.Vertices[i]
		b := pl.Vertices[(i+1)%n]
		ax, ay := a.X*unitFactor, a.Y*unitFactor
		bx, by := b.X*unitFactor, b.Y*unitFactor
		chord := math.Hypot(bx-ax, by-ay)

		if math.Abs(a.Bulge) < 1e-9 {
			total += chord
			continue
		}
		angle := 4 * math.Atan(a.Bulge)
		sinHalf := math.Sin(angle / 2)
		if sinHalf == 0 {
			total += chord
			continue
		}
		radius := math.Abs(chord / (2 * sinHalf))
		total += radius * math.Abs(angle)
	}
	return total
}

func polyline3DNativeLength(pl cad.Polyline3D, unitFactor float64) float64 {
	n := len(pl.Vertices)
	if n < 2 {
		return 0
	}
	pairs := n - 1
	if pl.Closed {
		pairs = n
	}
	var total float64
	for i := 0; i < pairs; i++ {
		a := pl.Vertices[i]
		b := pl.Vertices[(i+1)%n]
		ax, ay := a.X*unitFactor, a.Y*unitFactor
		bx, by := b.X*unitFactor, b.Y*unitFactor
		total += math.Hypot(bx-ax, by-ay)
	}
	return total
}

// splineNativeLength approximates a spline's length as its control polygon
// length; ExplodeInsertLength uses it for splines inside blocks.
func splineNativeLength(sp cad.Spline, unitFactor float64) float64 {
	pts := sp.ControlPoints
	if len(pts) < 2 {
		return 0
	}
	pairs := len(pts) - 1
	if sp.Closed {
		pairs = len(pts)
	}
	var total float64
	for i := 0; i < pairs; i++ {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		total += math.Hypot((b.X-a.X)*unitFactor, (b.Y-a.Y)*unitFactor)
	}
	return total
}

func classifyLayer(layer string, mapping map[string][]*regexp.Regexp) string {
	for _, semType := range []string{"corte", "vinco", "serrilha", "serrilha_mista", "trespt"} {
		for _, re := range mapping[semType] {
			if re != nil && re.MatchString(layer) {
				return semType
			}
		}
	}
	upper := strings.ToUpper(layer)
	switch {
	case strings.Contains(upper, "VINCO"):
		return "vinco"
	case strings.Contains(upper, "SERR"):
		return "serrilha"
	default:
		return "outro"
	}
}

func normalizeSweepRad(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}

func computeExtents(segments []Segment) domain.Extents {
	if len(segments) == 0 {
		return domain.Extents{}
	}
	ext := domain.Extents{
		MinX: segments[0].StartX, MaxX: segments[0].StartX,
		MinY: segments[0].StartY, MaxY: segments[0].StartY,
	}
	for _, s := range segments {
		for _, p := range [][2]float64{{s.StartX, s.StartY}, {s.EndX, s.EndY}} {
			if p[0] < ext.MinX {
				ext.MinX = p[0]
			}
			if p[0] > ext.MaxX {
				ext.MaxX = p[0]
			}
			if p[1] < ext.MinY {
				ext.MinY = p[1]
			}
			if p[1] > ext.MaxY {
				ext.MaxY = p[1]
			}
		}
	}
	return ext
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
