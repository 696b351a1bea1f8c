package index

import "sort"

// sliceCursor iterates a materialised posting slice. It backs both the
// in-memory source and the segment reader.
type sliceCursor struct {
	recs         []PostingRecord
	pos          int
	relDocCount  int
	occTotal     uint64
	hasPositions bool
}

// NewSliceCursor wraps recs, which must be sorted by ascending DocID.
// relDocCount is the term's full document frequency in the index (equal to
// len(recs) unless the cursor is partial).
func NewSliceCursor(recs []PostingRecord, relDocCount int, hasPositions bool) Cursor {
	var occ uint64
	for _, r := range recs {
		occ += uint64(r.TermFreq)
	}
	return &sliceCursor{
		recs:         recs,
		relDocCount:  relDocCount,
		occTotal:     occ,
		hasPositions: hasPositions,
	}
}

func (c *sliceCursor) Next() (PostingRecord, bool) {
	if c.pos >= len(c.recs) {
		return PostingRecord{}, false
	}
	rec := c.recs[c.pos]
	c.pos++
	return rec, true
}

func (c *sliceCursor) Seek(docID uint32) (PostingRecord, bool) {
	// The cursor is forward-only: when the current record already
	// satisfies the target it is re-delivered, so probing with
	// non-decreasing targets never skips a match.
	if c.pos > 0 && c.pos <= len(c.recs) && c.recs[c.pos-1].DocID >= docID {
		return c.recs[c.pos-1], true
	}
	rest := c.recs[c.pos:]
	i := sort.Search(len(rest), func(i int) bool {
		return rest[i].DocID >= docID
	})
	c.pos += i
	return c.Next()
}

func (c *sliceCursor) Reset() {
	c.pos = 0
}

func (c *sliceCursor) DocCount() int               { return len(c.recs) }
func (c *sliceCursor) WordOccurrenceTotal() uint64 { return c.occTotal }
func (c *sliceCursor) RelDocCount() int            { return c.relDocCount }
func (c *sliceCursor) HasPositions() bool          { return c.hasPositions }
