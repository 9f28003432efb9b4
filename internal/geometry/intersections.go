package geometry

import "math"

// AnalyzeIntersections computes the drawing's bounding box from segments and
// counts crossings, the entry point callers outside this package use since
// boundingBox itself stays unexported.
func AnalyzeIntersections(segments []Segment, gapTolerance float64) int {
	return CountIntersections(segments, boundingBoxOf(segments), gapTolerance)
}

// gridCell keys the uniform spatial grid used by the intersection counter.
// The corte-seco heuristic declares its own gridCell type.
type gridCell struct {
	cx, cy int64
}

// CountIntersections builds a uniform grid sized relative to the drawing's
// bounding-box diagonal and counts non-endpoint crossings between segment
// pairs that share at least one cell, each pair considered once.
func CountIntersections(segments []Segment, extents boundingBox, gapTolerance float64) int {
	cellSize := math.Max(extents.diagonal()/100, gapTolerance*4)
	if cellSize <= 0 {
		cellSize = 1
	}

	grid := make(map[gridCell][]int)
	for i, s := range segments {
		for _, c := range cellsForSegment(s, cellSize) {
			grid[c] = append(grid[c], i)
		}
	}

	seen := make(map[[2]int]bool)
	count := 0
	for _, idxs := range grid {
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				i, j := idxs[a], idxs[b]
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if seen[key] {
					continue
				}
				seen[key] = true
				if segmentsIntersect(segments[i], segments[j], gapTolerance) {
					count++
				}
			}
		}
	}
	return count
}

type boundingBox struct {
	minX, minY, maxX, maxY float64
}

func (b boundingBox) diagonal() float64 {
	return math.Hypot(b.maxX-b.minX, b.maxY-b.minY)
}

func boundingBoxOf(segments []Segment) boundingBox {
	if len(segments) == 0 {
		return boundingBox{}
	}
	b := boundingBox{segments[0].StartX, segments[0].StartY, segments[0].StartX, segments[0].StartY}
	for _, s := range segments {
		for _, p := range [][2]float64{{s.StartX, s.StartY}, {s.EndX, s.EndY}} {
			b.minX = math.Min(b.minX, p[0])
			b.minY = math.Min(b.minY, p[1])
			b.maxX = math.Max(b.maxX, p[0])
			b.maxY = math.Max(b.maxY, p[1])
		}
	}
	return b
}

func cellsForSegment(s Segment, cellSize float64) []gridCell {
	minX, maxX := math.Min(s.StartX, s.EndX), math.Max(s.StartX, s.EndX)
	minY, maxY := math.Min(s.StartY, s.EndY), math.Max(s.StartY, s.EndY)

	c0x, c1x := int64(math.Floor(minX/cellSize)), int64(math.Floor(maxX/cellSize))
	c0y, c1y := int64(math.Floor(minY/cellSize)), int64(math.Floor(maxY/cellSize))

	var cells []gridCell
	for cx := c0x; cx <= c1x; cx++ {
		for cy := c0y; cy <= c1y; cy++ {
			cells = append(cells, gridCell{cx, cy})
		}
	}
	return cells
}

// segmentsIntersect reports a non-endpoint crossing between two segments
// using 2-D cross products, excluding intersections that land on either
// segment's endpoint within gapTolerance. Collinear overlapping pairs count
// once when their projected overlap exceeds gapTolerance.
func segmentsIntersect(a, b Segment, gapTolerance float64) bool {
	p := [2]float64{a.StartX, a.StartY}
	r := [2]float64{a.EndX - a.StartX, a.EndY - a.StartY}
	q := [2]float64{b.StartX, b.StartY}
	s := [2]float64{b.EndX - b.StartX, b.EndY - b.StartY}

	rxs := cross(r, s)
	qmp := [2]float64{q[0] - p[0], q[1] - p[1]}

	if math.Abs(rxs) < 1e-12 {
		// Parallel or collinear.
		if math.Abs(cross(qmp, r)) > 1e-9 {
			return false // parallel, not collinear
		}
		return collinearOverlap(a, b, gapTolerance)
	}

	t := cross(qmp, s) / rxs
	u := cross(qmp, r) / rxs
	if t < -1e-9 || t > 1+1e-9 || u < -1e-9 || u > 1+1e-9 {
		return false
	}

	ix := p[0] + t*r[0]
	iy := p[1] + t*r[1]

	if nearEndpoint(ix, iy, a, gapTolerance) || nearEndpoint(ix, iy, b, gapTolerance) {
		return false
	}
	return true
}

func nearEndpoint(x, y float64, s Segment, tol float64) bool {
	return math.Hypot(x-s.StartX, y-s.StartY) <= tol || math.Hypot(x-s.EndX, y-s.EndY) <= tol
}

func cross(a, b [2]float64) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

func collinearOverlap(a, b Segment, gapTolerance float64) bool {
	dirX, dirY := a.EndX-a.StartX, a.EndY-a.StartY
	length := math.Hypot(dirX, dirY)
	if length < 1e-9 {
		return false
	}
	ux, uy := dirX/length, dirY/length

	proj := func(px, py float64) float64 {
		return (px-a.StartX)*ux + (py-a.StartY)*uy
	}

	a0, a1 := 0.0, length
	b0, b1 := proj(b.StartX, b.StartY), proj(b.EndX, b.EndY)
	if b0 > b1 {
		b0, b1 = b1, b0
	}

	overlapStart := math.Max(a0, b0)
	overlapEnd := math.Min(a1, b1)
	overlap := overlapEnd - overlapStart
	return overlap > gapTolerance
}
