package corteseco

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/geometry"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

func normalizeBladeCode(code string) string {
	return strings.ToUpper(nonAlphanumeric.ReplaceAllString(code, ""))
}

// duplicatedBladeCodes returns, sorted, the first-seen original
// (un-normalized) blade code of every normalized blade code that appears in
// two or more serrilha entries.
func duplicatedBladeCodes(summary domain.SerrilhaSummary) []string {
	counts := make(map[string]int)
	original := make(map[string]string)
	for _, e := range summary.Entries {
		norm := normalizeBladeCode(e.BladeCode)
		if norm == "" {
			continue
		}
		counts[norm]++
		if _, ok := original[norm]; !ok {
			original[norm] = e.BladeCode
		}
	}

	var dup []string
	for norm, n := range counts {
		if n >= 2 {
			dup = append(dup, original[norm])
		}
	}
	sort.Strings(dup)
	return dup
}

type candidate struct {
	seg    geometry.Segment
	length float64
}

// Detect runs the dry-cut heuristic over segments on target-type layers,
// gated by the duplicated-blade-code precondition computed from summary.
func Detect(segments []geometry.Segment, layerTypes map[string]string, summary domain.SerrilhaSummary, cfg Config) domain.CorteSecoSummary {
	if !cfg.Enabled {
		return domain.CorteSecoSummary{}
	}

	bladeCodes := duplicatedBladeCodes(summary)
	if len(bladeCodes) == 0 {
		return domain.CorteSecoSummary{}
	}

	candidates := filterCandidates(segments, layerTypes, cfg)
	if len(candidates) < 2 {
		return domain.CorteSecoSummary{}
	}

	cellSize := math.Max(cfg.MinLengthMillimeters, math.Max(cfg.MaxOffsetMillimeters*6, cfg.GapTolerance*4))
	if cellSize <= 0 {
		cellSize = 1
	}

	grid := buildGrid(candidates, cfg.MaxOffsetMillimeters, cellSize)

	type scoredPair struct {
		pair    domain.CorteSecoPair
		overlap float64
	}

	seen := make(map[[2]int]bool)
	var pairs []scoredPair

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

				ca, cb := candidates[i], candidates[j]
				pair, overlap, ok := evaluatePair(ca, cb, layerTypes, cfg)
				if !ok {
					continue
				}
				pairs = append(pairs, scoredPair{pair: pair, overlap: overlap})
			}
		}
	}

	if len(pairs) < cfg.MinPairCount {
		return domain.CorteSecoSummary{}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].overlap > pairs[j].overlap })

	top := pairs
	if len(top) > 10 {
		top = top[:10]
	}

	result := domain.CorteSecoSummary{IsCorteSeco: true, BladeCodes: bladeCodes}
	for _, p := range top {
		result.Pairs = append(result.Pairs, p.pair)
	}
	return result
}

func filterCandidates(segments []geometry.Segment, layerTypes map[string]string, cfg Config) []candidate {
	var out []candidate
	for _, s := range segments {
		if s.IsCurve {
			continue
		}
		if !cfg.isTargetType(layerTypes[s.Layer]) {
			continue
		}
		length := s.Length()
		if length < cfg.MinLengthMillimeters {
			continue
		}
		out = append(out, candidate{seg: s, length: length})
	}
	return out
}

type gridCell struct{ cx, cy int64 }

func buildGrid(candidates []candidate, maxOffset, cellSize float64) map[gridCell][]int {
	grid := make(map[gridCell][]int)
	for i, c := range candidates {
		minX := math.Min(c.seg.StartX, c.seg.EndX) - maxOffset
		maxX := math.Max(c.seg.StartX, c.seg.EndX) + maxOffset
		minY := math.Min(c.seg.StartY, c.seg.EndY) - maxOffset
		maxY := math.Max(c.seg.StartY, c.seg.EndY) + maxOffset

		c0x, c1x := int64(math.Floor(minX/cellSize)), int64(math.Floor(maxX/cellSize))
		c0y, c1y := int64(math.Floor(minY/cellSize)), int64(math.Floor(maxY/cellSize))

		for cx := c0x; cx <= c1x; cx++ {
			for cy := c0y; cy <= c1y; cy++ {
				cell := gridCell{cx, cy}
				grid[cell] = append(grid[cell], i)
			}
		}
	}
	return grid
}

// evaluatePair runs the direction/parallel/overlap/offset checks of the
// heuristic for one candidate pair and, on success, returns the
// representative pair summary and its overlap length.
func evaluatePair(a, b candidate, layerTypes map[string]string, cfg Config) (domain.CorteSecoPair, float64, bool) {
	ax, ay := a.seg.EndX-a.seg.StartX, a.seg.EndY-a.seg.StartY
	bx, by := b.seg.EndX-b.seg.StartX, b.seg.EndY-b.seg.StartY

	alen := math.Hypot(ax, ay)
	blen := math.Hypot(bx, by)
	if alen < 1e-9 || blen < 1e-9 {
		return domain.CorteSecoPair{}, 0, false
	}
	aux, auy := ax/alen, ay/alen
	bux, buy := bx/blen, by/blen

	cosTheta := aux*bux + auy*buy
	maxAngleRad := cfg.MaxParallelAngleDegrees * math.Pi / 180
	if math.Abs(cosTheta) < math.Cos(maxAngleRad) {
		return domain.CorteSecoPair{}, 0, false
	}

	proj := func(px, py float64) float64 { return (px-a.seg.StartX)*aux + (py-a.seg.StartY)*auy }
	b0, b1 := proj(b.seg.StartX, b.seg.StartY), proj(b.seg.EndX, b.seg.EndY)
	if b0 > b1 {
		b0, b1 = b1, b0
	}
	overlapStart := math.Max(0, b0)
	overlapEnd := math.Min(alen, b1)
	overlap := overlapEnd - overlapStart
	if overlap < cfg.MinOverlapRatio*math.Min(alen, blen) {
		return domain.CorteSecoPair{}, 0, false
	}

	// Each segment's two endpoints must lie on the same side of the other
	// segment's line (signedOffset returns sign 0 when they disagree).
	offsetOnA, signA := signedOffset(a.seg.StartX, a.seg.StartY, aux, auy, b.seg)
	offsetOnB, signB := signedOffset(b.seg.StartX, b.seg.StartY, bux, buy, a.seg)
	if signA == 0 || signB == 0 {
		return domain.CorteSecoPair{}, 0, false
	}

	avgTolerance := math.Max(2*cfg.GapTolerance, 0.1)
	if math.Abs(offsetOnA-offsetOnB) > avgTolerance {
		return domain.CorteSecoPair{}, 0, false
	}

	representative := offsetOnA
	if offsetOnB > representative {
		representative = offsetOnB
	}
	if representative <= cfg.GapTolerance || representative >= cfg.MaxOffsetMillimeters {
		return domain.CorteSecoPair{}, 0, false
	}

	angleDelta := math.Acos(clamp(cosTheta, -1, 1)) * 180 / math.Pi

	pair := domain.CorteSecoPair{
		LayerA:        a.seg.Layer,
		LayerB:        b.seg.Layer,
		SemanticTypeA: layerTypes[a.seg.Layer],
		SemanticTypeB: layerTypes[b.seg.Layer],
		OverlapLength: overlap,
		AverageOffset: representative,
		AngleDeltaDeg: angleDelta,
	}
	return pair, overlap, true
}

// signedOffset returns the average signed perpendicular distance of seg's
// two endpoints from the line through (ox, oy) with unit direction (ux, uy),
// and the sign (+1/-1) shared by both endpoints, or sign 0 if they disagree.
func signedOffset(ox, oy, ux, uy float64, seg geometry.Segment) (avg float64, sign int) {
	nx, ny := -uy, ux // left-hand normal

	d1 := (seg.StartX-ox)*nx + (seg.StartY-oy)*ny
	d2 := (seg.EndX-ox)*nx + (seg.EndY-oy)*ny

	s1, s2 := signOf(d1), signOf(d2)
	if s1 != s2 || s1 == 0 {
		return math.Abs(d1+d2) / 2, 0
	}
	return math.Abs(d1+d2) / 2, s1
}

func signOf(v float64) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
