package geometry

import "testing"

func TestCountIntersections_CrossingPair(t *testing.T) {
	segs := []Segment{
		{StartX: 0, StartY: 5, EndX: 10, EndY: 5},
		{StartX: 5, StartY: 0, EndX: 5, EndY: 10},
	}
	bbox := boundingBoxOf(segs)
	got := CountIntersections(segs, bbox, 0.01)
	if got != 1 {
		t.Errorf("CountIntersections() = %d, want 1", got)
	}
}

func TestCountIntersections_EndpointTouchExcluded(t *testing.T) {
	segs := []Segment{
		{StartX: 0, StartY: 0, EndX: 10, EndY: 0},
		{StartX: 10, StartY: 0, EndX: 10, EndY: 10},
	}
	bbox := boundingBoxOf(segs)
	got := CountIntersections(segs, bbox, 0.01)
	if got != 0 {
		t.Errorf("CountIntersections() = %d, want 0 (shared endpoint excluded)", got)
	}
}

func TestCountIntersections_ParallelNonOverlapping(t *testing.T) {
	segs := []Segment{
		{StartX: 0, StartY: 0, EndX: 10, EndY: 0},
		{StartX: 0, StartY: 5, EndX: 10, EndY: 5},
	}
	bbox := boundingBoxOf(segs)
	got := CountIntersections(segs, bbox, 0.01)
	if got != 0 {
		t.Errorf("CountIntersections() = %d, want 0", got)
	}
}
