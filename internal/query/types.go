// Package query implements the query execution core: planning, phrase
// segmentation, TF/IDF scoring with optional positional proximity, bounded
// top-K selection, boolean composition with upstream result sets, deletion
// filtering, and the LIKE mirror post-filter.
package query

import "math"

// Saturated is the sentinel emitted whenever 64-bit score arithmetic
// overflows. Callers detect saturation by comparing against it.
const Saturated = math.MaxInt64 - 4_000_000

// scoreScale keeps integer division from erasing small contributions.
const scoreScale = 1_000_000

// Word is one tokenized query term: the normalised word, its rank, and its
// byte offset in the query string.
type Word struct {
	Word     string
	Rank     int
	Position int
}

// Tokenizer is the port through which the core obtains query words. It is
// treated as a pure function: identical input must produce identical
// output within a query.
type Tokenizer interface {
	Tokenize(text string) []Word
}

// Flags qualifies one query execution.
type Flags struct {
	// CanLoadPartOfDocs declares the caller will consume only a prefix of
	// the results, permitting partial cursors.
	CanLoadPartOfDocs bool
	// NoAndExpression guarantees no further AND composition, enabling the
	// one-word early-termination path.
	NoAndExpression bool
	// NeedGroupBy requests a companion id set for grouping.
	NeedGroupBy bool
	// Not inverts the predicate.
	Not bool
	// End is the highest result index the caller will consume; zero means
	// unbounded. It sizes the mirror partial sort.
	End int
}

// ScoredDoc pairs a document with its integer score.
type ScoredDoc struct {
	DocID uint32
	Score int64
}

// Less orders ScoredDocs by descending score, then ascending doc id. This
// is the standard order used inside top-K buckets and partial sorts.
func (d ScoredDoc) Less(other ScoredDoc) bool {
	if d.Score != other.Score {
		return d.Score > other.Score
	}
	return d.DocID < other.DocID
}

// mulSat multiplies saturating to Saturated on overflow.
func mulSat(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	c := a * b
	if c/b != a || c < 0 {
		return Saturated, true
	}
	return c, false
}

// addSat adds saturating to Saturated on overflow. Both operands must be
// non-negative.
func addSat(a, b int64) (int64, bool) {
	c := a + b
	if c < 0 || c >= Saturated {
		return Saturated, true
	}
	return c, false
}
