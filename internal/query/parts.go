package query

import "sort"

// segmentTerms partitions term entries into overlapping parts: within each
// part the terms' occupied query ranges [FirstPosition, FirstPosition +
// len(Word)) are pairwise disjoint. Overlapping candidate tokens at the
// same range (compound-word variants) land in separate parts, and every
// part is extended with the compatible tail of part zero so each spans the
// full query. Scoring runs once per part; the results are OR-merged.
func segmentTerms(terms []*TermEntry) [][]*TermEntry {
	if len(terms) == 0 {
		return nil
	}
	sorted := make([]*TermEntry, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FirstPosition != sorted[j].FirstPosition {
			return sorted[i].FirstPosition < sorted[j].FirstPosition
		}
		return sorted[i].QueryRank > sorted[j].QueryRank
	})

	var groups [][]*TermEntry
	for _, t := range sorted {
		placed := false
		for gi, g := range groups {
			last := g[len(g)-1]
			if t.FirstPosition >= last.end() {
				groups[gi] = append(g, t)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		// New group, prefilled with the part-zero terms that fit before t.
		var ng []*TermEntry
		if len(groups) > 0 {
			for _, g0t := range groups[0] {
				if g0t.end() <= t.FirstPosition {
					ng = append(ng, g0t)
				}
			}
		}
		groups = append(groups, append(ng, t))
	}

	// Extend every later group with the compatible tail of group zero.
	for gi := 1; gi < len(groups); gi++ {
		g := groups[gi]
		for _, g0t := range groups[0] {
			if g0t.FirstPosition >= g[len(g)-1].end() {
				g = append(g, g0t)
			}
		}
		groups[gi] = g
	}
	return groups
}
