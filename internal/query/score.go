package query

import (
	"context"
	"math"

	"github.com/ftsql/ftsql/internal/index"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
)

// factorFunc computes the multiplier applied to a term's base score from
// the previous and current matched terms. Simple mode uses a constant 1;
// positional mode derives a proximity factor from query and posting
// position deltas. The two scoring modes differ only here.
type factorFunc func(prev, cur termMatch) float64

// termMatch pairs a term entry with its posting record for the document
// under consideration.
type termMatch struct {
	term *TermEntry
	rec  index.PostingRecord
}

// scorer runs the driver/probe intersection over a group of term entries
// and emits per-document scores into a result set.
type scorer struct {
	fieldRank int64
	// minResultCount is the admission threshold for the one-word
	// early-termination path.
	minResultCount int
	onSaturate     func()
}

// scoreGroup intersects the group's cursors document-at-a-time and admits
// each fully matched document into a fresh result set, subject to the
// upstream boolean context. The cheapest cursor drives; the remaining
// cursors are probed with Seek and must match exactly. Cancellation is
// observed between driver records.
func (s *scorer) scoreGroup(ctx context.Context, group []*TermEntry, positional bool, oneWord bool, upstream *ResultSet) (*ResultSet, error) {
	result := NewResultSet()
	if len(group) == 0 {
		return result, nil
	}
	for _, t := range group {
		t.Cursor.Reset()
	}

	byCost := sortByDocCount(group)
	driver, probes := byCost[0], byCost[1:]
	byPosition := sortByQueryPosition(group)

	factor := simpleFactor
	if positional {
		factor = proximityFactor(len(group))
	}

	matches := make(map[string]index.PostingRecord, len(group))
	ordered := make([]termMatch, 0, len(group))

	var admitted int
	var oneWordMaxCount uint32

	for {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.ErrCancelled
		}
		rec, ok := driver.Cursor.Next()
		if !ok {
			break
		}

		if oneWord {
			// Past the admission threshold, records rarer than the best
			// frequency seen cannot reach the top and are dropped
			// unscored.
			if admitted >= s.minResultCount && rec.TermFreq < oneWordMaxCount {
				continue
			}
			admitted++
			if rec.TermFreq > oneWordMaxCount {
				oneWordMaxCount = rec.TermFreq
			}
		}

		matches[driver.Word] = rec
		agreed := true
		for _, probe := range probes {
			prec, ok := probe.Cursor.Seek(rec.DocID)
			if !ok || prec.DocID != rec.DocID {
				agreed = false
				break
			}
			matches[probe.Word] = prec
		}
		if !agreed {
			continue
		}

		ordered = ordered[:0]
		for _, t := range byPosition {
			ordered = append(ordered, termMatch{term: t, rec: matches[t.Word]})
		}
		score := s.scoreDoc(ordered, factor)
		result.admit(rec.DocID, score, upstream)
	}
	return result, nil
}

// scoreDoc computes the document's total score: each term contributes its
// base TF/IDF value scaled by the factor against the previously matched
// term, summed with saturation.
func (s *scorer) scoreDoc(ordered []termMatch, factor factorFunc) int64 {
	var total int64
	for i, m := range ordered {
		base, saturated := s.baseScore(m)
		perTerm := base
		if !saturated && i > 0 {
			f := factor(ordered[i-1], m)
			if f != 1 {
				v := float64(base) * f
				if v >= float64(Saturated) {
					perTerm = Saturated
					saturated = true
				} else {
					perTerm = int64(v)
				}
			}
		}
		if saturated && s.onSaturate != nil {
			s.onSaturate()
		}
		var overflowed bool
		total, overflowed = addSat(total, perTerm)
		if overflowed && s.onSaturate != nil {
			s.onSaturate()
		}
	}
	return total
}

// baseScore computes the per-term integer score
//
//	field_rank * query_rank * idf * term_freq * 1e6 / (norm_d_t * doc_terms)
//
// saturating to Saturated whenever the 64-bit numerator overflows.
func (s *scorer) baseScore(m termMatch) (int64, bool) {
	num := s.fieldRank
	var saturated, sat bool
	num, sat = mulSat(num, m.term.QueryRank)
	saturated = saturated || sat
	num, sat = mulSat(num, m.term.IDF)
	saturated = saturated || sat
	num, sat = mulSat(num, int64(m.rec.TermFreq))
	saturated = saturated || sat
	num, sat = mulSat(num, scoreScale)
	saturated = saturated || sat
	if saturated {
		return Saturated, true
	}
	den := m.term.NormDT * int64(m.rec.DocTerms)
	if den < 1 {
		den = 1
	}
	return num / den, false
}

// simpleFactor is the factor function for indexes without positions.
func simpleFactor(prev, cur termMatch) float64 {
	return 1
}

// proximityFactor builds the positional factor function. The closer the
// posting position delta tracks the query position delta, the larger the
// factor; the exponent flattens as the term count grows.
func proximityFactor(numTerms int) factorFunc {
	ratio := 1.0
	if numTerms > 1 {
		ratio = 2 / float64(numTerms-1)
	}
	return func(prev, cur termMatch) float64 {
		qDelta := cur.term.FirstPosition - prev.term.FirstPosition
		pDelta := int(cur.rec.FirstPos) - int(prev.rec.FirstPos)
		delta := math.Abs(float64(qDelta - pDelta))
		switch {
		case delta < 0.031:
			delta = 0.031
		case delta <= 1.1:
			delta = 0.5
		case delta <= 2.1:
			delta = 1.0
		}
		return math.Pow(1/delta, ratio) *
			float64(cur.rec.TermFreq) * float64(prev.rec.TermFreq) /
			float64(cur.term.QueryCount*prev.term.QueryCount)
	}
}
