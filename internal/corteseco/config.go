// Package corteseco implements the dry-cut ("corte seco") detection
// heuristic: near-parallel, close, overlapping linear-segment pairs sharing
// a duplicated blade code, on layers whose semantic type is a cutting-blade
// type.
package corteseco

// Config holds the heuristic's tunables, normally sourced from the
// engine's top-level configuration.
type Config struct {
	Enabled bool

	TargetLayerTypes []string

	MinLengthMillimeters    float64
	MaxOffsetMillimeters    float64
	MaxParallelAngleDegrees float64
	MinOverlapRatio         float64
	MinPairCount            int
	GapTolerance            float64
}

// DefaultTargetLayerTypes is used when Config.TargetLayerTypes is empty.
var DefaultTargetLayerTypes = []string{"serrilha", "serrilha_mista"}

func (c Config) targetLayerTypes() []string {
	if len(c.TargetLayerTypes) > 0 {
		return c.TargetLayerTypes
	}
	return DefaultTargetLayerTypes
}

func (c Config) isTargetType(t string) bool {
	for _, target := range c.targetLayerTypes() {
		if t == target {
			return true
		}
	}
	return false
}
