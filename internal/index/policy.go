package index

import "sort"

// SelectivityThreshold is the cutoff above which a full scan beats an
// index lookup (spec.md §4.6).
const SelectivityThreshold = 0.20

// Candidate is one predicate/index pairing C8 is deciding among for a
// single scan.
type Candidate struct {
	Column      string
	IndexPath   string
	FileSize    int64
	Selectivity float64
}

// SelectCandidate implements the §4.6 selection policy: drop anything
// above the selectivity threshold, then pick the lowest-selectivity
// survivor, breaking ties by smaller index file and then by stable
// column-name order.
func SelectCandidate(candidates []Candidate) (Candidate, bool) {
	var pool []Candidate
	for _, c := range candidates {
		if c.Selectivity <= SelectivityThreshold {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Selectivity != b.Selectivity {
			return a.Selectivity < b.Selectivity
		}
		if a.FileSize != b.FileSize {
			return a.FileSize < b.FileSize
		}
		return a.Column < b.Column
	})
	return pool[0], true
}
