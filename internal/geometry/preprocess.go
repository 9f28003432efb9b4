package geometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/facasdxf/complexity-engine/internal/cad"
	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/pkg/logger"
)

// Tolerances bundles the two geometric knobs the preprocessor needs.
type Tolerances struct {
	GapTolerance     float64
	OverlapTolerance float64
}

// splineQualitySegments is the fixed tessellation count the preprocessor
// uses for splines; it exists only to feed the overlap/dangling counters,
// separate from the extractor's chord-tolerance-driven tessellation.
const splineQualitySegments = 16

type point2 struct{ x, y float64 }

func dist(a, b point2) float64 {
	return math.Hypot(b.x-a.x, b.y-a.y)
}

// PreprocessResult is the preprocessor's output: the quality counters
// gathered so far, and a document with degenerate/near-duplicate primitives
// removed or snapped.
type PreprocessResult struct {
	Quality  domain.QualityReport
	Document *cad.Document
}

// Preprocess removes degenerate primitives and computes the tiny-gap,
// overlap and dangling-end counters described for the geometry pipeline's
// quality pass. It never fails: a spline that cannot be discretized is
// logged and simply excluded from the quality counters.
func Preprocess(doc *cad.Document, tol Tolerances, log *logger.Logger) PreprocessResult {
	out := &cad.Document{
		DeclaredUnit: doc.DeclaredUnit,
		Arcs:         doc.Arcs,
		Circles:      doc.Circles,
		Polylines3D:  doc.Polylines3D,
		Splines:      doc.Splines,
		Ellipses:     doc.Ellipses,
		Inserts:      doc.Inserts,
		Texts:        doc.Texts,
	}

	var tinyGaps int

	filteredLines := make([]cad.Line, 0, len(doc.Lines))
	for _, ln := range doc.Lines {
		if dist(point2{ln.Start.X, ln.Start.Y}, point2{ln.End.X, ln.End.Y}) < tol.GapTolerance {
			tinyGaps++
			continue
		}
		filteredLines = append(filteredLines, ln)
	}
	out.Lines = filteredLines

	snappedPolylines := make([]cad.Polyline, 0, len(doc.Polylines))
	for _, pl := range doc.Polylines {
		snapped, n := snapVertices(pl.Vertices, pl.Closed, tol.GapTolerance)
		tinyGaps += n
		snappedPolylines = append(snappedPolylines, cad.Polyline{
			Layer: pl.Layer, Vertices: snapped, Closed: pl.Closed,
		})
	}
	out.Polylines = snappedPolylines

	var segments [][2]point2
	for _, ln := range filteredLines {
		segments = append(segments, [2]point2{{ln.Start.X, ln.Start.Y}, {ln.End.X, ln.End.Y}})
	}
	for _, pl := range snappedPolylines {
		segments = append(segments, polylineSegments(pl.Vertices, pl.Closed)...)
	}
	for _, pl := range doc.Polylines3D {
		pts := make([]point2, len(pl.Vertices))
		for i, v := range pl.Vertices {
			pts[i] = point2{v.X, v.Y}
		}
		segments = append(segments, segmentsFromPoints(pts, pl.Closed)...)
	}
	for _, sp := range doc.Splines {
		pts := make([]point2, len(sp.ControlPoints))
		for i, v := range sp.ControlPoints {
			pts[i] = point2{v.X, v.Y}
		}
		segs, err := resampleBySegmentCount(pts, sp.Closed, splineQualitySegments)
		if err != nil {
			if log != nil {
				log.Warn("spline discretization skipped", "layer", sp.Layer, "error", err.Error())
			}
			continue
		}
		segments = append(segments, segs...)
	}

	overlaps, danglingEnds := countOverlapsAndDangling(segments)

	return PreprocessResult{
		Quality: domain.QualityReport{
			TinyGaps:     tinyGaps,
			Overlaps:     overlaps,
			DanglingEnds: danglingEnds,
		},
		Document: out,
	}
}

// snapVertices replaces each pair of consecutive vertices (wrapping when
// closed) whose distance is below tol with their shared midpoint, in place
// on a copy, and reports how many snaps occurred.
func snapVertices(verts []cad.Vertex2D, closed bool, tol float64) ([]cad.Vertex2D, int) {
	if len(verts) < 2 {
		out := make([]cad.Vertex2D, len(verts))
		copy(out, verts)
		return out, 0
	}
	out := make([]cad.Vertex2D, len(verts))
	copy(out, verts)

	n := 0
	last := len(out) - 1
	for i := 0; i < last; i++ {
		a, b := out[i], out[i+1]
		if dist(point2{a.X, a.Y}, point2{b.X, b.Y}) < tol {
			mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
			out[i].X, out[i].Y = mx, my
			out[i+1].X, out[i+1].Y = mx, my
			n++
		}
	}
	if closed {
		a, b := out[last], out[0]
		if dist(point2{a.X, a.Y}, point2{b.X, b.Y}) < tol {
			mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
			out[last].X, out[last].Y = mx, my
			out[0].X, out[0].Y = mx, my
			n++
		}
	}
	return out, n
}

func polylineSegments(verts []cad.Vertex2D, closed bool) [][2]point2 {
	pts := make([]point2, len(verts))
	for i, v := range verts {
		pts[i] = point2{v.X, v.Y}
	}
	return segmentsFromPoints(pts, closed)
}

func segmentsFromPoints(pts []point2, closed bool) [][2]point2 {
	if len(pts) < 2 {
		return nil
	}
	segs := make([][2]point2, 0, len(pts))
	for i := 0; i+1 < len(pts); i++ {
		segs = append(segs, [2]point2{pts[i], pts[i+1]})
	}
	if closed {
		segs = append(segs, [2]point2{pts[len(pts)-1], pts[0]})
	}
	return segs
}

// resampleBySegmentCount walks the control polygon's arc length and emits
// exactly n equal-length straight segments, used for spline discretization
// by both Preprocess and extractSpline.
func resampleBySegmentCount(pts []point2, closed bool, n int) ([][2]point2, error) {
	if closed && len(pts) > 0 {
		pts = append(append([]point2{}, pts...), pts[0])
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("spline has fewer than 2 control points")
	}

	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + dist(pts[i-1], pts[i])
	}
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil, fmt.Errorf("spline control polygon has zero length")
	}

	segs := make([][2]point2, 0, n)
	prev := pts[0]
	for i := 1; i <= n; i++ {
		target := total * float64(i) / float64(n)
		pt := pointAtLength(pts, cum, target)
		segs = append(segs, [2]point2{prev, pt})
		prev = pt
	}
	return segs, nil
}

func pointAtLength(pts []point2, cum []float64, target float64) point2 {
	for i := 1; i < len(cum); i++ {
		if target <= cum[i] || i == len(cum)-1 {
			span := cum[i] - cum[i-1]
			if span <= 0 {
				return pts[i]
			}
			t := (target - cum[i-1]) / span
			return point2{
				x: pts[i-1].x + t*(pts[i].x-pts[i-1].x),
				y: pts[i-1].y + t*(pts[i].y-pts[i-1].y),
			}
		}
	}
	return pts[len(pts)-1]
}

// canonicalKey rounds both endpoints to 3 decimal places and sorts them
// lexicographically so a segment and its reverse collide.
func canonicalKey(a, b point2) string {
	ra, rb := round3(a), round3(b)
	if pointLess(rb, ra) {
		ra, rb = rb, ra
	}
	return fmt.Sprintf("%.3f,%.3f|%.3f,%.3f", ra.x, ra.y, rb.x, rb.y)
}

func pointLess(a, b point2) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	return a.y < b.y
}

func round3(p point2) point2 {
	return point2{roundTo(p.x, 3), roundTo(p.y, 3)}
}

func round2(p point2) point2 {
	return point2{roundTo(p.x, 2), roundTo(p.y, 2)}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func countOverlapsAndDangling(segments [][2]point2) (overlaps int, danglingEnds int) {
	seen := make(map[string]int, len(segments))
	for _, seg := range segments {
		key := canonicalKey(seg[0], seg[1])
		if seen[key] > 0 {
			overlaps++
		}
		seen[key]++
	}

	endpointCounts := make(map[point2]int, len(segments)*2)
	for _, seg := range segments {
		endpointCounts[round2(seg[0])]++
		endpointCounts[round2(seg[1])]++
	}

	keys := make([]point2, 0, len(endpointCounts))
	for k := range endpointCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return pointLess(keys[i], keys[j]) })
	for _, k := range keys {
		if endpointCounts[k] == 1 {
			danglingEnds++
		}
	}
	return overlaps, danglingEnds
}
