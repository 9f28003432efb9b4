package serrilha

import (
	"strconv"
	"strings"

	"github.com/facasdxf/complexity-engine/internal/cad"
	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/geometry"
)

// Recognize runs the insert and text sub-detectors over doc's inserts and
// texts, sharing one canonical (semantic type, blade code) entry index,
// then enriches the result with classification and distinct-count
// statistics. unitFactor scales block-insert length estimates the same way
// it scales every other length in the pipeline.
func (r Recognizer) Recognize(doc *cad.Document, inserts []cad.Insert, texts []cad.Text, unitFactor float64) domain.SerrilhaSummary {
	b := &builder{entries: make(map[domain.SerrilhaKey]*domain.SerrilhaEntry)}

	for _, ins := range inserts {
		recognizeInsert(r, doc, ins, unitFactor, b)
	}
	for _, txt := range texts {
		recognizeText(r, txt, b)
	}

	summary := b.summary()
	enrich(&summary)
	return summary
}

type builder struct {
	order          []domain.SerrilhaKey
	entries        map[domain.SerrilhaKey]*domain.SerrilhaEntry
	totalCount     int
	unknownCount   int
	unknownSeen    map[string]bool
	unknownSymbols []string
}

func (b *builder) add(semType, bladeCode, symbol string, length float64, hasLength bool, teeth int, hasTeeth bool) {
	key := domain.SerrilhaKey{SemanticType: semType, BladeCode: bladeCode}
	e, ok := b.entries[key]
	if !ok {
		e = &domain.SerrilhaEntry{SemanticType: semType, BladeCode: bladeCode}
		b.entries[key] = e
		b.order = append(b.order, key)
	}
	e.Count++
	if !containsString(e.Symbols, symbol) {
		e.Symbols = append(e.Symbols, symbol)
	}
	if hasLength {
		e.EstimatedLength += length
		e.HasEstimatedLength = true
	}
	if hasTeeth {
		e.ToothCount += teeth
		e.HasToothCount = true
	}
	b.totalCount++
}

func (b *builder) addUnknown(symbol string) {
	b.unknownCount++
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if b.unknownSeen == nil {
		b.unknownSeen = make(map[string]bool)
	}
	if !b.unknownSeen[key] {
		b.unknownSeen[key] = true
		b.unknownSymbols = append(b.unknownSymbols, symbol)
	}
}

func (b *builder) summary() domain.SerrilhaSummary {
	s := domain.SerrilhaSummary{
		TotalCount:     b.totalCount,
		UnknownCount:   b.unknownCount,
		UnknownSymbols: b.unknownSymbols,
	}
	for _, k := range b.order {
		s.Entries = append(s.Entries, *b.entries[k])
	}
	return s
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func recognizeInsert(r Recognizer, doc *cad.Document, ins cad.Insert, unitFactor float64, b *builder) {
	for _, sym := range r.InsertSymbols {
		if sym.BlockName == nil {
			continue
		}
		match := sym.BlockName.FindStringSubmatch(ins.BlockName)
		if match == nil {
			continue
		}
		if sym.AttributePattern != nil && !insertAttributesMatch(sym, ins) {
			continue
		}

		bladeCode := sym.BladeCodeLiteral
		if sym.BladeCodeGroup != "" {
			if v := namedGroup(sym.BlockName, match, sym.BladeCodeGroup); v != "" {
				bladeCode = v
			}
		}

		length := geometry.ExplodeInsertLength(doc, ins, 0, unitFactor)
		b.add(sym.SemanticType, bladeCode, ins.BlockName, length, length > 0, 0, false)
		return
	}
	b.addUnknown(ins.BlockName)
}

func insertAttributesMatch(sym InsertSymbol, ins cad.Insert) bool {
	for _, attr := range ins.Attributes {
		if sym.AttributePattern.MatchString(attr.Value) || sym.AttributePattern.MatchString(attr.Tag) {
			return true
		}
	}
	return false
}

func recognizeText(r Recognizer, txt cad.Text, b *builder) {
	for _, m := range r.TextMatchers {
		if m.Pattern == nil {
			continue
		}

		var matches [][]string
		if m.AllowMultipleMatches {
			matches = m.Pattern.FindAllStringSubmatch(txt.Value, -1)
		} else if match := m.Pattern.FindStringSubmatch(txt.Value); match != nil {
			matches = [][]string{match}
		}

		for _, match := range matches {
			semType := resolveSemanticType(m, match)
			bladeCode := resolveBladeCode(m, match)
			length, hasLength := resolveLength(m, match)
			teeth, hasTeeth := resolveToothCount(m, match)
			b.add(semType, bladeCode, match[0], length, hasLength, teeth, hasTeeth)
		}
	}
}

func resolveSemanticType(m TextMatcher, match []string) string {
	var v string
	if m.SemanticTypeGroup != "" {
		v = namedGroup(m.Pattern, match, m.SemanticTypeGroup)
	}
	if v == "" {
		return m.SemanticTypeLiteral
	}
	if m.SemanticTypeUpper {
		v = strings.ToUpper(v)
	}
	if m.SemanticTypeFormat != "" {
		return strings.Replace(m.SemanticTypeFormat, "%s", v, 1)
	}
	return v
}

func resolveBladeCode(m TextMatcher, match []string) string {
	if m.BladeCodeGroup != "" {
		if v := namedGroup(m.Pattern, match, m.BladeCodeGroup); v != "" {
			if m.BladeCodeUpper {
				v = strings.ToUpper(v)
			}
			return v
		}
	}
	return m.BladeCodeLiteral
}

func resolveLength(m TextMatcher, match []string) (float64, bool) {
	if m.LengthGroup != "" {
		if v := namedGroup(m.Pattern, match, m.LengthGroup); v != "" {
			v = strings.ReplaceAll(v, ",", ".")
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				factor := m.LengthFactor
				if factor == 0 {
					factor = 1
				}
				return f * factor, true
			}
		}
	}
	if m.HasDefaultLength {
		return m.DefaultLength, true
	}
	return 0, false
}

func resolveToothCount(m TextMatcher, match []string) (int, bool) {
	if m.ToothCountGroup != "" {
		if v := namedGroup(m.Pattern, match, m.ToothCountGroup); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	if m.HasDefaultToothCount {
		return m.DefaultToothCount, true
	}
	return 0, false
}

// namedGroup returns the submatch captured by the named group in re, or ""
// if the group did not participate in the match.
func namedGroup(re interface{ SubexpNames() []string }, match []string, name string) string {
	for i, n := range re.SubexpNames() {
		if n == name && i < len(match) {
			return match[i]
		}
	}
	return ""
}
