package query

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// ResultSet maps doc ids to scores. Key order is unspecified; the caller
// applies top-K iteration. A set marked Not represents the complement of
// its key set; combiners honour the flag without materialising the
// complement.
type ResultSet struct {
	Scores map[uint32]int64
	Not    bool
	// RelTotalCount is at least Len() and may be larger when only a
	// prefix of postings was consumed.
	RelTotalCount int
	// GroupBy is the optional companion id set for grouping.
	GroupBy *roaring.Bitmap
}

// NewResultSet returns an empty, non-negated set.
func NewResultSet() *ResultSet {
	return &ResultSet{Scores: make(map[uint32]int64)}
}

// Len returns the number of keys.
func (r *ResultSet) Len() int {
	return len(r.Scores)
}

// Contains reports raw key membership, ignoring the Not flag.
func (r *ResultSet) Contains(docID uint32) bool {
	_, ok := r.Scores[docID]
	return ok
}

// Score returns the stored score for docID, or zero.
func (r *ResultSet) Score(docID uint32) int64 {
	return r.Scores[docID]
}

// admit inserts (docID, score) subject to the upstream boolean context:
// with no upstream every record is inserted; a positive upstream admits
// only its members and adds their scores; a negated upstream admits only
// non-members. The upstream set is never mutated.
func (r *ResultSet) admit(docID uint32, score int64, upstream *ResultSet) {
	switch {
	case upstream == nil:
		r.Scores[docID] = score
	case !upstream.Not:
		if upstream.Contains(docID) {
			merged, _ := addSat(score, upstream.Score(docID))
			r.Scores[docID] = merged
		}
	default:
		if !upstream.Contains(docID) {
			r.Scores[docID] = score
		}
	}
}

// merge ORs other into r by key; on collision the scores add, saturating.
func (r *ResultSet) merge(other *ResultSet) {
	for docID, score := range other.Scores {
		if existing, ok := r.Scores[docID]; ok {
			sum, _ := addSat(existing, score)
			r.Scores[docID] = sum
		} else {
			r.Scores[docID] = score
		}
	}
}

// Docs returns the scored entries as a slice, in unspecified order.
func (r *ResultSet) Docs() []ScoredDoc {
	docs := make([]ScoredDoc, 0, len(r.Scores))
	for docID, score := range r.Scores {
		docs = append(docs, ScoredDoc{DocID: docID, Score: score})
	}
	return docs
}
