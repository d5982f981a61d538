package facematch

import (
	"math"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

const (
	indexMaxNeighbors = 16
	indexEfSearch     = 64
)

// indexLevelFactor is the HNSW layer normalization mL = 1/ln(M) from Malkov
// and Yashunin.
func indexLevelFactor() float64 {
	return 1 / math.Log(indexMaxNeighbors)
}

// nearestIndex is an HNSW graph over snapshot positions.
type nearestIndex struct {
	graph *hnsw.Graph[int]
}

func newNearestIndex(snapshot Snapshot, dim int) *nearestIndex {
	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = indexLevelFactor()
	g.Distance = hnsw.EuclideanDistance
	g.EfSearch = indexEfSearch

	for i := range snapshot {
		if !snapshot[i].Descriptor.Valid(dim) {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(snapshot[i].Descriptor)))
	}
	return &nearestIndex{graph: g}
}

// search re-ranks the approximate neighbors with exact distances so the
// threshold check is the same as the linear scan.
func (x *nearestIndex) search(probe Descriptor, snapshot Snapshot, threshold float64) Result {
	neighbors := x.graph.Search([]float32(probe), constants.NearestSearchK)

	best := -1
	bestDist := math.Inf(1)
	for _, n := range neighbors {
		d := Distance(probe, snapshot[n.Key].Descriptor)
		if d < bestDist || (d == bestDist && n.Key < best) {
			best, bestDist = n.Key, d
		}
	}
	if best < 0 || bestDist >= threshold {
		return Result{Distance: bestDist}
	}
	return Result{Record: &snapshot[best], Distance: bestDist, Matched: true}
}
