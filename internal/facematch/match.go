package facematch

import (
	"math"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// Distance is the Euclidean distance between a and b. Vectors of different
// length are infinitely far apart.
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// IsMatch reports whether candidate is strictly closer than threshold.
func IsMatch(probe, candidate Descriptor, threshold float64) bool {
	if len(probe) == 0 || len(probe) != len(candidate) {
		return false
	}
	return Distance(probe, candidate) < threshold
}

// FindMatch returns the first record in snapshot order that matches probe.
// Records whose descriptor is absent or of a different length are skipped.
func FindMatch(probe Descriptor, snapshot Snapshot, threshold float64) Result {
	for i := range snapshot {
		rec := &snapshot[i]
		if !rec.Descriptor.Valid(len(probe)) {
			continue
		}
		d := Distance(probe, rec.Descriptor)
		if d < threshold {
			return Result{Record: rec, Distance: d, Matched: true}
		}
	}
	return Result{}
}

// FindNearest returns the closest valid record, matched only when strictly
// under threshold. Ties go to the earlier record.
func FindNearest(probe Descriptor, snapshot Snapshot, threshold float64) Result {
	best := -1
	bestDist := math.Inf(1)
	for i := range snapshot {
		if !snapshot[i].Descriptor.Valid(len(probe)) {
			continue
		}
		if d := Distance(probe, snapshot[i].Descriptor); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist >= threshold {
		return Result{Distance: bestDist}
	}
	return Result{Record: &snapshot[best], Distance: bestDist, Matched: true}
}

// Matcher holds the matching configuration of a kiosk.
type Matcher struct {
	Threshold float64
	Policy    Policy
	Dim       int
}

// NewMatcher returns a Matcher with defaults applied to zero fields.
func NewMatcher(threshold float64, policy Policy, dim int) Matcher {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	if policy == "" {
		policy = PolicyFirst
	}
	if dim <= 0 {
		dim = constants.DescriptorDim
	}
	return Matcher{Threshold: threshold, Policy: policy, Dim: dim}
}

// Prepare binds the matcher to a snapshot. For the nearest policy over a
// large snapshot this builds an approximate index once.
func (m Matcher) Prepare(snapshot Snapshot) *Prepared {
	p := &Prepared{matcher: m, snapshot: snapshot}
	if m.Policy == PolicyNearest && snapshot.Matchable(m.Dim) >= constants.NearestIndexMinSize {
		p.index = newNearestIndex(snapshot, m.Dim)
	}
	return p
}

// Prepared is a matcher bound to one read-only snapshot.
type Prepared struct {
	matcher  Matcher
	snapshot Snapshot
	index    *nearestIndex
}

// Snapshot returns the bound snapshot.
func (p *Prepared) Snapshot() Snapshot {
	return p.snapshot
}

// Match classifies probe. Probes of the wrong dimension never match.
func (p *Prepared) Match(probe Descriptor) Result {
	if !probe.Valid(p.matcher.Dim) {
		return Result{Distance: math.Inf(1)}
	}

	switch p.matcher.Policy {
	case PolicyNearest:
		if p.index != nil {
			return p.index.search(probe, p.snapshot, p.matcher.Threshold)
		}
		return FindNearest(probe, p.snapshot, p.matcher.Threshold)
	default:
		return FindMatch(probe, p.snapshot, p.matcher.Threshold)
	}
}
