// Package units resolves a CAD document's declared drawing unit into a
// millimetre scale factor and a canonical label.
package units

import (
	"strings"

	"github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

type unitDef struct {
	canonical string
	factor    float64
}

// table maps every accepted spelling, lower-cased, to its definition. Several
// keys point at the same unitDef so aliases share one canonical label.
var table = map[string]unitDef{
	"mm":         {"mm", 1},
	"millimeter": {"mm", 1},
	"millimetre": {"mm", 1},

	"cm":         {"cm", 10},
	"centimeter": {"cm", 10},
	"centimetre": {"cm", 10},

	"m":     {"m", 1000},
	"meter": {"m", 1000},
	"metre": {"m", 1000},

	"dm":        {"dm", 100},
	"decimeter": {"dm", 100},

	"dam":        {"dam", 10000},
	"decameter":  {"dam", 10000},
	"decametre":  {"dam", 10000},

	"hm":         {"hm", 100000},
	"hectometer": {"hm", 100000},

	"km":         {"km", 1000000},
	"kilometer":  {"km", 1000000},
	"kilometre":  {"km", 1000000},

	"um":     {"µm", 0.001},
	"µm":     {"µm", 0.001},
	"micron": {"µm", 0.001},

	"nm":         {"nm", 0.000001},
	"nanometer":  {"nm", 0.000001},

	"in":     {"in", 25.4},
	"inch":   {"in", 25.4},
	"inches": {"in", 25.4},

	"ft":   {"ft", 304.8},
	"foot": {"ft", 304.8},
	"feet": {"ft", 304.8},

	"uin":        {"µin", 0.0000254},
	"µin":        {"µin", 0.0000254},
	"microinch":  {"µin", 0.0000254},

	"mil":  {"mil", 0.0254},
	"mils": {"mil", 0.0254},

	"yd":   {"yd", 914.4},
	"yard": {"yd", 914.4},

	"mi":   {"mi", 1609344},
	"mile": {"mi", 1609344},
}

// unitless is the sentinel canonical name a document can declare to mean
// "this document carries no unit", triggering the configured default.
const unitless = "unitless"

// Resolve maps declared, the document's declared unit designator, to a
// millimetre scale factor and canonical label. An empty or "unitless"
// declared value falls back to defaultUnit. Resolve fails with
// errors.CodeValidation only when even defaultUnit cannot be recognized.
func Resolve(declared string, defaultUnit string) (factor float64, canonical string, err error) {
	name := normalize(declared)
	if name == "" || name == unitless {
		name = normalize(defaultUnit)
		if def, ok := table[name]; ok {
			return def.factor, def.canonical, nil
		}
		return 0, "", errors.ValidationError("invalid default unit: " + defaultUnit)
	}

	if def, ok := table[name]; ok {
		return def.factor, def.canonical, nil
	}

	// Declared unit is unrecognized; fall back to the configured default
	// rather than failing the whole analysis over a bad drawing unit.
	name = normalize(defaultUnit)
	if def, ok := table[name]; ok {
		return def.factor, def.canonical, nil
	}
	return 0, "", errors.ValidationError("invalid default unit: " + defaultUnit)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
