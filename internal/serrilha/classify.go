package serrilha

import (
	"strings"

	"github.com/facasdxf/complexity-engine/internal/domain"
)

var mistaKeywords = []string{"MISTA", "MIXTA"}
var zipperKeywords = []string{"ZIP", "ZIPER", "ZIPPER"}
var travadaKeywords = []string{
	"TRAV", "TRAVA", "TRAVADA",
	"RANH", "RANHURA", "RANHURAS",
	"SELCOLA", "SEL COLA", "SELAGEM", "SELADO",
}

// enrich fills distinct-count, total/average length, and classification
// fields on an already-populated summary.
func enrich(s *domain.SerrilhaSummary) {
	semTypes := make(map[string]bool)
	bladeCodes := make(map[string]bool)

	for _, e := range s.Entries {
		semTypes[e.SemanticType] = true
		bladeCodes[e.BladeCode] = true

		if e.HasEstimatedLength {
			s.TotalEstimatedLength += e.EstimatedLength
			s.HasEstimatedLength = true
		}

		classifyEntry(e, &s.Classification)
	}

	s.DistinctSemanticTypes = len(semTypes)
	s.DistinctBladeCodes = len(bladeCodes)

	if s.HasEstimatedLength && len(s.Entries) > 0 {
		s.AverageEstimatedLength = s.TotalEstimatedLength / float64(len(s.Entries))
	}

	distinct := 0
	if s.Classification.Simple > 0 {
		distinct++
	}
	if s.Classification.Mista > 0 {
		distinct++
	}
	if s.Classification.Travada > 0 {
		distinct++
	}
	if s.Classification.Zipper > 0 {
		distinct++
	}
	s.Classification.DistinctCategories = distinct
}

// classifyEntry matches an entry's semantic type, blade code, and symbol
// names against the mista/zipper/travada keyword tables and increments the
// categories that hit. An entry with no keyword hit counts as simple.
func classifyEntry(e domain.SerrilhaEntry, c *domain.Classification) {
	haystack := e.SemanticType + " " + e.BladeCode
	for _, sym := range e.Symbols {
		haystack += " " + sym
	}
	canon := canonicalizeKeyword(haystack)

	hit := false
	if containsAnyKeyword(canon, mistaKeywords) {
		c.Mista++
		hit = true
	}
	if containsAnyKeyword(canon, zipperKeywords) {
		c.Zipper++
		hit = true
	}
	if containsAnyKeyword(canon, travadaKeywords) {
		c.Travada++
		hit = true
	}
	if !hit {
		c.Simple++
	}
}

func containsAnyKeyword(canonHaystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(canonHaystack, canonicalizeKeyword(kw)) {
			return true
		}
	}
	return false
}
