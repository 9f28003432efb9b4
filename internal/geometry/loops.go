package geometry

import (
	"fmt"
	"math"
)

// NodeKey is a quantized graph node: both endpoint coordinates rounded to
// the snap tolerance, so segments that nearly touch collapse onto one node.
type NodeKey struct {
	X, Y int64
}

type loopNode struct {
	edges []int
}

type loopEdge struct {
	a, b  int
	layer string
}

// SnapTolerance returns the loop detector's node-snapping tolerance for the
// given gap tolerance, per the floor the detector always applies.
func SnapTolerance(gapTolerance float64) float64 {
	return math.Max(0.2, math.Max(gapTolerance, 1e-3))
}

// DetectLoops re-assembles connected degree-2 components from segments,
// represented as parallel arrays (nodes referencing edge indices, edges
// referencing node indices) rather than a pointer graph. It returns the
// closed-loop count broken down by the semantic type of each loop's first
// edge (by original segment order), the overall total, and a human-readable
// note describing the estimate.
func DetectLoops(segments []Segment, layerTypes map[string]string, tol float64) (byType map[string]int, total int, note string) {
	nodeIndex := make(map[NodeKey]int)
	var nodes []loopNode
	var edges []loopEdge

	getNode := func(k NodeKey) int {
		if id, ok := nodeIndex[k]; ok {
			return id
		}
		id := len(nodes)
		nodes = append(nodes, loopNode{})
		nodeIndex[k] = id
		return id
	}

	for _, s := range segments {
		if s.Length() < 1e-9 {
			continue
		}
		a := quantizeNode(s.StartX, s.StartY, tol)
		b := quantizeNode(s.EndX, s.EndY, tol)
		if a == b {
			continue
		}
		na, nb := getNode(a), getNode(b)
		eid := len(edges)
		edges = append(edges, loopEdge{a: na, b: nb, layer: s.Layer})
		nodes[na].edges = append(nodes[na].edges, eid)
		nodes[nb].edges = append(nodes[nb].edges, eid)
	}

	byType = make(map[string]int)
	visited := make([]bool, len(nodes))

	for start := range nodes {
		if visited[start] {
			continue
		}
		compNodes, compEdgeIDs := bfsComponent(start, nodes, edges, visited)

		closed := len(compNodes) >= 3 && len(compEdgeIDs) >= 3
		if closed {
			for _, n := range compNodes {
				if len(nodes[n].edges) != 2 {
					closed = false
					break
				}
			}
		}
		if !closed {
			continue
		}

		total++
		firstEdge := compEdgeIDs[0]
		for _, e := range compEdgeIDs {
			if e < firstEdge {
				firstEdge = e
			}
		}
		byType[layerTypes[edges[firstEdge].layer]]++
	}

	note = fmt.Sprintf("Loops estimados: %d", total)
	return byType, total, note
}

func bfsComponent(start int, nodes []loopNode, edges []loopEdge, visited []bool) ([]int, []int) {
	queue := []int{start}
	visited[start] = true

	var compNodes []int
	var compEdgeIDs []int
	edgeSeen := make(map[int]bool)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		compNodes = append(compNodes, cur)

		for _, eid := range nodes[cur].edges {
			if !edgeSeen[eid] {
				edgeSeen[eid] = true
				compEdgeIDs = append(compEdgeIDs, eid)
			}
			e := edges[eid]
			other := e.a
			if other == cur {
				other = e.b
			}
			if !visited[other] {
				visited[other] = true
				queue = append(queue, other)
			}
		}
	}
	return compNodes, compEdgeIDs
}

func quantizeNode(x, y, tol float64) NodeKey {
	return NodeKey{
		X: int64(math.Round(x / tol)),
		Y: int64(math.Round(y / tol)),
	}
}

// MergeLoopCounts applies the native-floor replacement rule: the detector's
// estimate only replaces the native registrations when its total strictly
// exceeds the native floor. On a tie, the native floor is kept.
func MergeLoopCounts(nativeByType map[string]int, nativeTotal int, detectedByType map[string]int, detectedTotal int) (map[string]int, int) {
	if detectedTotal > nativeTotal {
		return detectedByType, detectedTotal
	}
	return nativeByType, nativeTotal
}
