package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/facasdxf/complexity-engine/internal/domain"
)

// rule evaluates one scoring rule against metrics and cfg, returning its
// contribution and explanation lines (zero or more). Rules never see each
// other's state; ordering of the fixed rule table is what makes
// Explanations deterministic.
type rule func(m domain.Metrics, cfg Config) (float64, []string)

// Score runs every rule in the fixed table, sums contributions, and clamps
// the total to [0, 5] at the single return point.
func Score(m domain.Metrics, cfg Config) (float64, []string) {
	rules := []rule{
		ruleCutLength,
		ruleNumCurves,
		ruleMinRadius,
		ruleIntersections,
		ruleDanglingEnds,
		ruleSerrilhaPresence,
		ruleSerrilhaClassification,
		ruleSerrilhaManualBlade,
		ruleSerrilhaDiversity,
		ruleSerrilhaDistinctBlades,
		ruleSerrilhaCola,
		ruleSerrilhaSmallPiece,
		ruleClosedLoops,
		ruleThreePt,
		ruleCurveDensity,
		ruleMaterials,
	}

	var total float64
	var explanations []string
	for _, r := range rules {
		contribution, lines := r(m, cfg)
		total += contribution
		explanations = append(explanations, lines...)
	}

	return clamp(total, 0, 5), explanations
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

func explain(label string, observed, threshold, weight float64) string {
	return fmt.Sprintf("%s: observado=%v limiar=%v peso=%v", label, observed, threshold, weight)
}

func ruleCutLength(m domain.Metrics, cfg Config) (float64, []string) {
	if m.TotalCutLength >= cfg.TotalCutLengthThreshold {
		return cfg.TotalCutLengthWeight, []string{
			explain("Comprimento de corte", m.TotalCutLength, cfg.TotalCutLengthThreshold, cfg.TotalCutLengthWeight),
		}
	}
	return 0, nil
}

func ruleNumCurves(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	n := float64(m.NumCurves)
	c := cfg.NumCurves

	if n >= c.Threshold {
		total += c.Weight
		explanations = append(explanations, explain("Quantidade de curvas", n, c.Threshold, c.Weight))
	}

	for _, extra := range c.ExtraThresholds {
		if n >= extra.Threshold {
			total += extra.Weight
			explanations = append(explanations, explain("Quantidade de curvas (extra)", n, extra.Threshold, extra.Weight))
		}
	}

	if c.Step > 0 && n > c.Threshold {
		steps := math.Floor((n - c.Threshold) / c.Step)
		contribution := steps * c.StepWeight
		if c.StepMaxContribution > 0 && contribution > c.StepMaxContribution {
			contribution = c.StepMaxContribution
		}
		if contribution > 0 {
			total += contribution
			explanations = append(explanations, explain("Quantidade de curvas (incremento)", n, c.Threshold, contribution))
		}
	}

	return total, explanations
}

func ruleMinRadius(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	if m.MinArcRadius <= cfg.MinRadius.DangerThreshold && !m.CorteSeco.IsCorteSeco {
		total += cfg.MinRadius.PenaltyWeight
		explanations = append(explanations, explain("Raio mínimo perigoso", m.MinArcRadius, cfg.MinRadius.DangerThreshold, cfg.MinRadius.PenaltyWeight))
	}

	if m.CorteSeco.IsCorteSeco {
		total += cfg.MinRadius.CorteSecoAdjustment
		explanations = append(explanations, explain("Ajuste de corte seco", m.MinArcRadius, cfg.MinRadius.DangerThreshold, cfg.MinRadius.CorteSecoAdjustment))

		pairCount := float64(len(m.CorteSeco.Pairs))
		for _, th := range cfg.MinRadius.CorteSecoPairThresholds {
			if pairCount >= th.Threshold {
				total += th.Weight
				explanations = append(explanations, explain("Pares de corte seco", pairCount, th.Threshold, th.Weight))
			}
		}
	}

	return total, explanations
}

func ruleIntersections(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	n := float64(m.NumIntersections)
	ic := cfg.Intersections

	if n >= ic.BonusIntersections {
		total += ic.BonusIntersectionsWeight
		explanations = append(explanations, explain("Interseções", n, ic.BonusIntersections, ic.BonusIntersectionsWeight))
	}

	for _, extra := range ic.Extras {
		if n >= extra.Threshold {
			total += extra.Weight
			explanations = append(explanations, explain("Interseções (extra)", n, extra.Threshold, extra.Weight))
		}
	}

	return total, explanations
}

func ruleDanglingEnds(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	n := float64(m.Quality.DanglingEnds)
	for _, th := range cfg.DanglingEnds.Thresholds {
		if n >= th.Threshold {
			total += th.Weight
			explanations = append(explanations, explain("Pontas soltas", n, th.Threshold, th.Weight))
		}
	}

	return total, explanations
}

func ruleSerrilhaPresence(m domain.Metrics, cfg Config) (float64, []string) {
	if m.Serrilha.TotalCount > 0 {
		return cfg.Serrilha.PresenceWeight, []string{
			explain("Presença de serrilha", float64(m.Serrilha.TotalCount), 1, cfg.Serrilha.PresenceWeight),
		}
	}
	return 0, nil
}

func ruleSerrilhaClassification(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	apply := func(label string, observed int, thresholds []WeightedThreshold) {
		for _, th := range thresholds {
			if float64(observed) >= th.Threshold {
				total += th.Weight
				explanations = append(explanations, explain(label, float64(observed), th.Threshold, th.Weight))
			}
		}
	}

	apply("Serrilha mista", m.Serrilha.Classification.Mista, cfg.Serrilha.MistaThresholds)
	apply("Serrilha travada", m.Serrilha.Classification.Travada, cfg.Serrilha.TravadaThresholds)
	apply("Serrilha zíper", m.Serrilha.Classification.Zipper, cfg.Serrilha.ZipperThresholds)

	return total, explanations
}

func ruleSerrilhaManualBlade(m domain.Metrics, cfg Config) (float64, []string) {
	for _, e := range m.Serrilha.Entries {
		for _, manual := range cfg.Serrilha.ManualBladeCodes {
			if strings.EqualFold(e.BladeCode, manual) {
				return cfg.Serrilha.ManualBladeWeight, []string{
					explain("Lâmina manual", 1, 1, cfg.Serrilha.ManualBladeWeight),
				}
			}
		}
	}
	return 0, nil
}

func ruleSerrilhaDiversity(m domain.Metrics, cfg Config) (float64, []string) {
	n := float64(m.Serrilha.Classification.DistinctCategories)
	if n >= cfg.Serrilha.DiversityThreshold {
		return cfg.Serrilha.DiversityWeight, []string{
			explain("Diversidade de serrilha", n, cfg.Serrilha.DiversityThreshold, cfg.Serrilha.DiversityWeight),
		}
	}
	return 0, nil
}

func ruleSerrilhaDistinctBlades(m domain.Metrics, cfg Config) (float64, []string) {
	n := float64(m.Serrilha.DistinctBladeCodes)
	if n >= cfg.Serrilha.DistinctBladeThreshold {
		return cfg.Serrilha.DistinctBladeWeight, []string{
			explain("Lâminas distintas", n, cfg.Serrilha.DistinctBladeThreshold, cfg.Serrilha.DistinctBladeWeight),
		}
	}
	return 0, nil
}

func ruleSerrilhaCola(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	matches := 0
	for _, e := range m.Serrilha.Entries {
		haystack := strings.ToLower(e.SemanticType + " " + e.BladeCode)
		for _, hint := range cfg.Serrilha.ColaSemanticHints {
			if strings.Contains(haystack, strings.ToLower(hint)) {
				matches++
				break
			}
		}
	}

	if matches > 0 {
		total += cfg.Serrilha.ColaWeight
		explanations = append(explanations, explain("Serrilha de cola", float64(matches), 1, cfg.Serrilha.ColaWeight))

		for _, th := range cfg.Serrilha.ColaCountThresholds {
			if float64(matches) >= th.Threshold {
				total += th.Weight
				explanations = append(explanations, explain("Serrilha de cola (quantidade)", float64(matches), th.Threshold, th.Weight))
			}
		}
	}

	return total, explanations
}

func ruleSerrilhaSmallPiece(m domain.Metrics, cfg Config) (float64, []string) {
	if m.Serrilha.TotalCount > 0 &&
		m.Serrilha.TotalCount <= cfg.Serrilha.SmallPieceMaxCount &&
		m.Serrilha.TotalEstimatedLength <= cfg.Serrilha.SmallPieceMaxTotalLength {
		return cfg.Serrilha.SmallPieceAdjustment, []string{
			explain("Ajuste de peça pequena", m.Serrilha.TotalEstimatedLength, cfg.Serrilha.SmallPieceMaxTotalLength, cfg.Serrilha.SmallPieceAdjustment),
		}
	}
	return 0, nil
}

func ruleClosedLoops(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	q := m.Quality
	cl := cfg.ClosedLoops

	if float64(q.ClosedLoops) >= cl.CountThreshold {
		total += cl.CountWeight
		explanations = append(explanations, explain("Loops fechados", float64(q.ClosedLoops), cl.CountThreshold, cl.CountWeight))
	}

	if float64(len(q.ClosedLoopsByType)) >= cl.VarietyThreshold {
		total += cl.VarietyWeight
		explanations = append(explanations, explain("Variedade de loops fechados", float64(len(q.ClosedLoopsByType)), cl.VarietyThreshold, cl.VarietyWeight))
	}

	if q.ClosedLoopDensity >= cl.DensityThreshold {
		total += cl.DensityWeight
		explanations = append(explanations, explain("Densidade de loops fechados", q.ClosedLoopDensity, cl.DensityThreshold, cl.DensityWeight))
	}

	return total, explanations
}

func ruleThreePt(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	tp := cfg.ThreePt

	if m.TotalThreePtLength >= tp.LengthThreshold {
		total += tp.LengthWeight
		explanations = append(explanations, explain("Comprimento três-pontos", m.TotalThreePtLength, tp.LengthThreshold, tp.LengthWeight))
	}

	if float64(m.ThreePtSegmentCount) >= tp.SegmentThreshold {
		total += tp.SegmentWeight
		explanations = append(explanations, explain("Segmentos três-pontos", float64(m.ThreePtSegmentCount), tp.SegmentThreshold, tp.SegmentWeight))
	}

	if m.ThreePtCutRatio >= tp.RatioThreshold {
		total += tp.RatioWeight
		explanations = append(explanations, explain("Proporção três-pontos", m.ThreePtCutRatio, tp.RatioThreshold, tp.RatioWeight))
	}

	if m.RequiresManualThreePtHandling {
		total += tp.ManualHandlingWeight
		explanations = append(explanations, explain("Manuseio manual três-pontos", 1, 1, tp.ManualHandlingWeight))
	}

	return total, explanations
}

func ruleCurveDensity(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	cd := cfg.CurveDensity
	q := m.Quality

	if q.DelicateArcDensity >= cd.DensityThreshold {
		total += cd.DensityWeight
		explanations = append(explanations, explain("Densidade de curvas", q.DelicateArcDensity, cd.DensityThreshold, cd.DensityWeight))
	}

	if float64(q.DelicateArcCount) >= cd.DelicateCountThreshold {
		total += cd.DelicateCountWeight
		explanations = append(explanations, explain("Curvas delicadas", float64(q.DelicateArcCount), cd.DelicateCountThreshold, cd.DelicateCountWeight))
	}

	return total, explanations
}

func ruleMaterials(m domain.Metrics, cfg Config) (float64, []string) {
	var total float64
	var explanations []string

	for _, material := range m.Quality.SpecialMaterials {
		weight, ok := cfg.Materials.PerMaterial[material]
		if !ok {
			weight = cfg.Materials.DefaultWeight
			lower := strings.ToLower(material)
			for keyword, w := range cfg.Materials.KeywordWeights {
				if strings.Contains(lower, strings.ToLower(keyword)) {
					weight = w
					break
				}
			}
		}
		total += weight
		explanations = append(explanations, explain("Material especial: "+material, 1, 1, weight))
	}

	return total, explanations
}
