package corteseco

import (
	"testing"

	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/geometry"
)

func dupBladeCodeSummary() domain.SerrilhaSummary {
	return domain.SerrilhaSummary{
		Entries: []domain.SerrilhaEntry{
			{SemanticType: "serrilha", BladeCode: "2x1"},
			{SemanticType: "serrilha_mista", BladeCode: "2X1"},
		},
	}
}

func baseConfig() Config {
	return Config{
		Enabled:                 true,
		MinLengthMillimeters:    10,
		MaxOffsetMillimeters:    2,
		MaxParallelAngleDegrees: 5,
		MinOverlapRatio:         0.5,
		MinPairCount:            1,
		GapTolerance:            0.05,
	}
}

func TestDetect_ParallelCloseOverlappingPairFires(t *testing.T) {
	layerTypes := map[string]string{"S1": "serrilha", "S2": "serrilha_mista"}
	segments := []geometry.Segment{
		{Layer: "S1", StartX: 0, StartY: 0, EndX: 60, EndY: 0},
		{Layer: "S2", StartX: 0, StartY: 0.3, EndX: 60, EndY: 0.3},
	}

	summary := Detect(segments, layerTypes, dupBladeCodeSummary(), baseConfig())

	if !summary.IsCorteSeco {
		t.Fatalf("expected IsCorteSeco = true, got %+v", summary)
	}
	if len(summary.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(summary.Pairs))
	}
	if len(summary.BladeCodes) != 1 {
		t.Errorf("expected 1 duplicated blade code, got %v", summary.BladeCodes)
	}
}

func TestDetect_NoDuplicatedBladeCodeDoesNotFire(t *testing.T) {
	layerTypes := map[string]string{"S1": "serrilha", "S2": "serrilha_mista"}
	segments := []geometry.Segment{
		{Layer: "S1", StartX: 0, StartY: 0, EndX: 60, EndY: 0},
		{Layer: "S2", StartX: 0, StartY: 0.3, EndX: 60, EndY: 0.3},
	}
	summary := domain.SerrilhaSummary{
		Entries: []domain.SerrilhaEntry{
			{SemanticType: "serrilha", BladeCode: "A1"},
			{SemanticType: "serrilha_mista", BladeCode: "B2"},
		},
	}

	got := Detect(segments, layerTypes, summary, baseConfig())
	if got.IsCorteSeco {
		t.Errorf("expected IsCorteSeco = false without a duplicated blade code, got %+v", got)
	}
}

func TestDetect_OffsetBeyondMaxDoesNotFire(t *testing.T) {
	layerTypes := map[string]string{"S1": "serrilha", "S2": "serrilha_mista"}
	segments := []geometry.Segment{
		{Layer: "S1", StartX: 0, StartY: 0, EndX: 60, EndY: 0},
		{Layer: "S2", StartX: 0, StartY: 10, EndX: 60, EndY: 10},
	}

	got := Detect(segments, layerTypes, dupBladeCodeSummary(), baseConfig())
	if got.IsCorteSeco {
		t.Errorf("expected IsCorteSeco = false with offset beyond MaxOffsetMillimeters, got %+v", got)
	}
}

func TestDetect_PerpendicularPairDoesNotFire(t *testing.T) {
	layerTypes := map[string]string{"S1": "serrilha", "S2": "serrilha_mista"}
	segments := []geometry.Segment{
		{Layer: "S1", StartX: 0, StartY: 0, EndX: 60, EndY: 0},
		{Layer: "S2", StartX: 30, StartY: -30, EndX: 30, EndY: 30},
	}

	got := Detect(segments, layerTypes, dupBladeCodeSummary(), baseConfig())
	if got.IsCorteSeco {
		t.Errorf("expected IsCorteSeco = false for a perpendicular pair, got %+v", got)
	}
}

func TestDetect_DisabledConfigNeverFires(t *testing.T) {
	cfg := baseConfig()
	cfg.Enabled = false
	layerTypes := map[string]string{"S1": "serrilha", "S2": "serrilha_mista"}
	segments := []geometry.Segment{
		{Layer: "S1", StartX: 0, StartY: 0, EndX: 60, EndY: 0},
		{Layer: "S2", StartX: 0, StartY: 0.3, EndX: 60, EndY: 0.3},
	}

	got := Detect(segments, layerTypes, dupBladeCodeSummary(), cfg)
	if got.IsCorteSeco {
		t.Errorf("expected IsCorteSeco = false when heuristic disabled, got %+v", got)
	}
}
