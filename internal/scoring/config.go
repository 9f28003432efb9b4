// Package scoring computes the final complexity score from a Metrics
// snapshot: a fixed, ordered table of additive rules, each configuration
// driven, each appending a deterministic explanation line when it fires.
package scoring

// WeightedThreshold is one (threshold, weight) pair used by the rule table's
// "extras"/"step" lists.
type WeightedThreshold struct {
	Threshold float64
	Weight    float64
}

// MinRadiusConfig configures the min-radius danger and corte-seco rules.
type MinRadiusConfig struct {
	DangerThreshold         float64
	PenaltyWeight           float64
	CorteSecoAdjustment     float64
	CorteSecoPairThresholds []WeightedThreshold
}

// SerrilhaScoringConfig configures the serrilha-derived rules.
type SerrilhaScoringConfig struct {
	PresenceWeight float64

	MistaThresholds   []WeightedThreshold
	TravadaThresholds []WeightedThreshold
	ZipperThresholds  []WeightedThreshold

	ManualBladeCodes []string
	ManualBladeWeight float64

	DiversityThreshold float64
	DiversityWeight    float64

	DistinctBladeThreshold float64
	DistinctBladeWeight    float64

	ColaSemanticHints   []string
	ColaWeight          float64
	ColaCountThresholds []WeightedThreshold

	SmallPieceMaxCount       int
	SmallPieceMaxTotalLength float64
	SmallPieceAdjustment     float64
}

// ClosedLoopConfig configures the closed-loops rule.
type ClosedLoopConfig struct {
	CountThreshold   float64
	CountWeight      float64
	VarietyThreshold float64
	VarietyWeight    float64
	DensityThreshold float64
	DensityWeight    float64
}

// ThreePtConfig configures the three-point rule.
type ThreePtConfig struct {
	LengthThreshold  float64
	LengthWeight     float64
	SegmentThreshold float64
	SegmentWeight    float64
	RatioThreshold   float64
	RatioWeight      float64
	ManualHandlingWeight float64
}

// CurveDensityConfig configures the curve-density rule.
type CurveDensityConfig struct {
	DensityThreshold       float64
	DensityWeight          float64
	DelicateCountThreshold float64
	DelicateCountWeight    float64
}

// MaterialsConfig configures the special-materials rule.
type MaterialsConfig struct {
	DefaultWeight  float64
	PerMaterial    map[string]float64
	KeywordWeights map[string]float64
}

// DanglingEndsConfig configures the dangling-ends rule.
type DanglingEndsConfig struct {
	Thresholds []WeightedThreshold
}

// IntersectionsConfig configures the intersections rule.
type IntersectionsConfig struct {
	BonusIntersections       float64
	BonusIntersectionsWeight float64
	Extras                   []WeightedThreshold
}

// NumCurvesConfig configures the curve-count base/extras/step rules.
type NumCurvesConfig struct {
	Threshold float64
	Weight    float64

	ExtraThresholds []WeightedThreshold

	Step               float64
	StepWeight         float64
	StepMaxContribution float64
}

// Config is the full scoring engine configuration; all weights and
// thresholds are deployment-driven.
type Config struct {
	TotalCutLengthThreshold float64
	TotalCutLengthWeight    float64

	NumCurves NumCurvesConfig

	MinRadius MinRadiusConfig

	Intersections IntersectionsConfig

	DanglingEnds DanglingEndsConfig

	Serrilha SerrilhaScoringConfig

	ClosedLoops ClosedLoopConfig

	ThreePt ThreePtConfig

	CurveDensity CurveDensityConfig

	Materials MaterialsConfig
}
