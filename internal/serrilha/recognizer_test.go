package serrilha

import (
	"regexp"
	"testing"

	"github.com/facasdxf/complexity-engine/internal/cad"
)

func textMatcherConfig() Recognizer {
	// "X=2x1 23,8 12d Y-10x0.4 11,5 24 dentes" style annotation: a semantic
	// code letter, a dimension pair, a comma-decimal length, and a tooth
	// count terminated by "d" or "dentes".
	pattern := regexp.MustCompile(`(?P<code>[A-Z])[-=]\d+x[\d.]+\s+(?P<length>\d+,\d+)\s+(?P<teeth>\d+)\s*d(?:entes)?`)
	return Recognizer{
		TextMatchers: []TextMatcher{
			{
				Pattern:              pattern,
				AllowMultipleMatches: true,
				SemanticTypeLiteral:  "serrilha",
				BladeCodeGroup:       "code",
				BladeCodeUpper:       true,
				LengthGroup:          "length",
				LengthFactor:         1,
				ToothCountGroup:      "teeth",
			},
		},
	}
}

func TestRecognizer_TextOnlyTwoEntries(t *testing.T) {
	cfg := textMatcherConfig()
	texts := []cad.Text{
		{Value: "X=2x1 23,8 12d Y-10x0.4 11,5 24 dentes"},
	}

	summary := cfg.Recognize(nil, nil, texts, 1)

	if got := len(summary.Entries); got != 2 {
		t.Fatalf("len(Entries) = %d, want 2", got)
	}
	if summary.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", summary.TotalCount)
	}

	byCode := make(map[string]int)
	for i, e := range summary.Entries {
		byCode[e.BladeCode] = i
	}

	x, ok := byCode["X"]
	if !ok {
		t.Fatalf("no entry for blade code X: %+v", summary.Entries)
	}
	if l := summary.Entries[x].EstimatedLength; l < 23.79 || l > 23.81 {
		t.Errorf("X length = %v, want ~23.8", l)
	}
	if summary.Entries[x].ToothCount != 12 {
		t.Errorf("X teeth = %d, want 12", summary.Entries[x].ToothCount)
	}

	y, ok := byCode["Y"]
	if !ok {
		t.Fatalf("no entry for blade code Y: %+v", summary.Entries)
	}
	if l := summary.Entries[y].EstimatedLength; l < 11.49 || l > 11.51 {
		t.Errorf("Y length = %v, want ~11.5", l)
	}
	if summary.Entries[y].ToothCount != 24 {
		t.Errorf("Y teeth = %d, want 24", summary.Entries[y].ToothCount)
	}
}

func insertSymbolConfig() Recognizer {
	return Recognizer{
		InsertSymbols: []InsertSymbol{
			{
				SemanticType:     "serrilha",
				BlockName:        regexp.MustCompile(`^SERR-(?P<code>\w+)$`),
				BladeCodeGroup:   "code",
				BladeCodeLiteral: "",
			},
		},
	}
}

func TestRecognizer_InsertKnownSymbol(t *testing.T) {
	cfg := insertSymbolConfig()
	inserts := []cad.Insert{
		{BlockName: "SERR-A1"},
		{BlockName: "SERR-A1"},
	}

	summary := cfg.Recognize(nil, inserts, nil, 1)

	if len(summary.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(summary.Entries))
	}
	if summary.Entries[0].Count != 2 {
		t.Errorf("Count = %d, want 2", summary.Entries[0].Count)
	}
	if summary.Entries[0].BladeCode != "A1" {
		t.Errorf("BladeCode = %q, want A1", summary.Entries[0].BladeCode)
	}
	if summary.UnknownCount != 0 {
		t.Errorf("UnknownCount = %d, want 0", summary.UnknownCount)
	}
}

func TestRecognizer_InsertUnknownSymbolDeduplicated(t *testing.T) {
	cfg := insertSymbolConfig()
	inserts := []cad.Insert{
		{BlockName: "MYSTERY-BLOCK"},
		{BlockName: "mystery-block"},
		{BlockName: "OTHER-BLOCK"},
	}

	summary := cfg.Recognize(nil, inserts, nil, 1)

	if summary.UnknownCount != 3 {
		t.Errorf("UnknownCount = %d, want 3", summary.UnknownCount)
	}
	if got := len(summary.UnknownSymbols); got != 2 {
		t.Errorf("len(UnknownSymbols) = %d, want 2 (case-insensitive dedup), got %v", got, summary.UnknownSymbols)
	}
}

func TestRecognizer_AttributePatternMustMatch(t *testing.T) {
	cfg := Recognizer{
		InsertSymbols: []InsertSymbol{
			{
				SemanticType:     "serrilha",
				BlockName:        regexp.MustCompile(`^GENERIC$`),
				AttributePattern: regexp.MustCompile(`^SERR`),
				BladeCodeLiteral: "G1",
			},
		},
	}

	withAttr := []cad.Insert{
		{BlockName: "GENERIC", Attributes: []cad.Attribute{{Tag: "TYPE", Value: "SERR-X"}}},
	}
	summary := cfg.Recognize(nil, withAttr, nil, 1)
	if len(summary.Entries) != 1 {
		t.Fatalf("expected insert with matching attribute to be recognized, got %+v", summary)
	}

	withoutAttr := []cad.Insert{
		{BlockName: "GENERIC", Attributes: []cad.Attribute{{Tag: "TYPE", Value: "OTHER"}}},
	}
	summary2 := cfg.Recognize(nil, withoutAttr, nil, 1)
	if len(summary2.Entries) != 0 || summary2.UnknownCount != 1 {
		t.Fatalf("expected insert with non-matching attribute to be unknown, got %+v", summary2)
	}
}
