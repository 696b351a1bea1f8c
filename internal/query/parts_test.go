package query

import "testing"

func entry(word string, pos int, rank int64) *TermEntry {
	return &TermEntry{Word: word, QueryRank: rank, QueryCount: 1, FirstPosition: pos}
}

func groupWords(g []*TermEntry) []string {
	words := make([]string, len(g))
	for i, t := range g {
		words[i] = t.Word
	}
	return words
}

func assertDisjoint(t *testing.T, g []*TermEntry) {
	t.Helper()
	for i := 0; i < len(g); i++ {
		for j := i + 1; j < len(g); j++ {
			a, b := g[i], g[j]
			if a.FirstPosition < b.end() && b.FirstPosition < a.end() {
				t.Errorf("terms %q and %q overlap in one group", a.Word, b.Word)
			}
		}
	}
}

func TestSegmenterSingleGroupForDisjointTerms(t *testing.T) {
	terms := []*TermEntry{
		entry("quick", 0, 1),
		entry("brown", 6, 1),
		entry("fox", 12, 1),
	}
	groups := segmentTerms(terms)
	if len(groups) != 1 {
		t.Fatalf("want 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 3 {
		t.Fatalf("group must hold all three terms, got %v", groupWords(groups[0]))
	}
}

func TestSegmenterSplitsOverlappingVariants(t *testing.T) {
	// Two tokenizer variants occupy the range at offset 0; a shared tail
	// term follows. Each group spans the full query.
	terms := []*TermEntry{
		entry("notebook", 0, 5),
		entry("note", 0, 3),
		entry("cover", 9, 1),
	}
	groups := segmentTerms(terms)
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	for _, g := range groups {
		assertDisjoint(t, g)
		last := g[len(g)-1]
		if last.Word != "cover" {
			t.Errorf("group %v must be extended with the tail term", groupWords(g))
		}
	}
	// The higher-ranked variant wins the first group.
	if groups[0][0].Word != "notebook" {
		t.Errorf("group 0 must start with the higher-ranked variant, got %v", groupWords(groups[0]))
	}
}

func TestSegmenterTotality(t *testing.T) {
	terms := []*TermEntry{
		entry("alpha", 0, 1),
		entry("alphabet", 0, 2),
		entry("bet", 5, 1),
		entry("beta", 5, 2),
		entry("tail", 10, 1),
	}
	groups := segmentTerms(terms)
	placed := make(map[string]bool)
	for _, g := range groups {
		assertDisjoint(t, g)
		for _, term := range g {
			placed[term.Word] = true
		}
	}
	for _, term := range terms {
		if !placed[term.Word] {
			t.Errorf("term %q missing from every group", term.Word)
		}
	}
}

func TestSegmenterPrefillsFromGroupZero(t *testing.T) {
	// The overlapping variant arrives after a disjoint prefix; the new
	// group must inherit the prefix terms that fit before it.
	terms := []*TermEntry{
		entry("data", 0, 1),
		entry("base", 5, 2),
		entry("basement", 5, 1),
	}
	groups := segmentTerms(terms)
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	second := groups[1]
	if second[0].Word != "data" {
		t.Fatalf("second group must be prefilled with %q, got %v", "data", groupWords(second))
	}
	assertDisjoint(t, second)
}

func TestSegmenterEmpty(t *testing.T) {
	if groups := segmentTerms(nil); groups != nil {
		t.Fatalf("no terms must yield no groups, got %d", len(groups))
	}
}
