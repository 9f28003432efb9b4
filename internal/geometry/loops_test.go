package geometry

import "testing"

func square(layer string) []Segment {
	return []Segment{
		{Layer: layer, StartX: 0, StartY: 0, EndX: 10, EndY: 0},
		{Layer: layer, StartX: 10, StartY: 0, EndX: 10, EndY: 10},
		{Layer: layer, StartX: 10, StartY: 10, EndX: 0, EndY: 10},
		{Layer: layer, StartX: 0, StartY: 10, EndX: 0, EndY: 0},
	}
}

func TestDetectLoops_ClosedSquare(t *testing.T) {
	segs := square("corte")
	layerTypes := map[string]string{"corte": "corte"}

	byType, total, note := DetectLoops(segs, layerTypes, SnapTolerance(0.01))
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if byType["corte"] != 1 {
		t.Errorf("byType[corte] = %d, want 1", byType["corte"])
	}
	if note == "" {
		t.Error("note is empty")
	}
}

func TestDetectLoops_OpenChainIsNotALoop(t *testing.T) {
	segs := []Segment{
		{Layer: "corte", StartX: 0, StartY: 0, EndX: 10, EndY: 0},
		{Layer: "corte", StartX: 10, StartY: 0, EndX: 10, EndY: 10},
	}
	_, total, _ := DetectLoops(segs, map[string]string{"corte": "corte"}, SnapTolerance(0.01))
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

func TestDetectLoops_TieKeepsNativeFloor(t *testing.T) {
	nativeByType := map[string]int{"corte": 1, "vinco": 0}
	detectedByType := map[string]int{"corte": 1}

	merged, total := MergeLoopCounts(nativeByType, 1, detectedByType, 1)
	if total != 1 {
		t.Errorf("total = %d, want 1 (native floor kept on tie)", total)
	}
	if _, hasVinco := merged["vinco"]; !hasVinco {
		t.Error("merged should be the native map on tie, not the detected map")
	}
}

func TestDetectLoops_StrictlyGreaterReplacesFloor(t *testing.T) {
	nativeByType := map[string]int{"corte": 1}
	detectedByType := map[string]int{"corte": 2}

	merged, total := MergeLoopCounts(nativeByType, 1, detectedByType, 2)
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if merged["corte"] != 2 {
		t.Errorf("merged[corte] = %d, want 2", merged["corte"])
	}
}
