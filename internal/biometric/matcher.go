package biometric

import (
	"math"
	"sort"
)

// Matcher compares face descriptors by Euclidean distance against a fixed
// acceptance threshold. Lower threshold means stricter matching.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given distance threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured distance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Distance computes the Euclidean distance between two descriptors.
// Returns +Inf when the lengths differ or either descriptor is empty.
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Verify compares two descriptors 1:1. The boundary is inclusive: a distance
// exactly equal to the threshold is a match.
func (m *Matcher) Verify(probe, candidate Descriptor) (bool, float64) {
	distance := Distance(probe, candidate)
	return distance <= m.threshold, distance
}

// Identify scans the candidate population linearly and returns the single
// best (lowest-distance) match, provided it is within the threshold. Ties are
// broken by population order: the first candidate encountered wins. Returns
// false for an empty population or when no candidate is close enough.
func (m *Matcher) Identify(probe Descriptor, candidates []Candidate) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	for _, c := range candidates {
		if d := Distance(probe, c.Descriptor); d < best.Distance {
			best = Match{SubjectID: c.SubjectID, Distance: d}
		}
	}

	if best.Distance > m.threshold {
		return Match{}, false
	}
	return best, true
}

// IdentifyTopK returns up to k matches ordered by ascending distance. Unlike
// Identify, results are not threshold-gated; callers filter downstream when
// they need to.
func (m *Matcher) IdentifyTopK(probe Descriptor, candidates []Candidate, k int) []Match {
	return IdentifyTopK(probe, candidates, k)
}

// IdentifyTopK is the threshold-free ranking behind Matcher.IdentifyTopK.
// Ties keep population order, so the first candidate encountered stays first.
func IdentifyTopK(probe Descriptor, candidates []Candidate, k int) []Match {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, Match{
			SubjectID: c.SubjectID,
			Distance:  Distance(probe, c.Descriptor),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Confidence converts a match distance into a score in [0, 1]. A distance of
// zero yields 1; anything at or beyond the threshold yields 0.
func (m *Matcher) Confidence(distance float64) float64 {
	if m.threshold <= 0 {
		return 0
	}
	c := 1 - distance/m.threshold
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
