// Package index defines the posting record and cursor contracts consumed by
// the query core, together with in-memory and segment-backed sources.
package index

// PostingRecord describes one term's occurrences in one document.
type PostingRecord struct {
	DocID    uint32
	TermFreq uint32
	DocTerms uint32 // total terms in the document
	FirstPos uint32 // first occurrence position; valid only with positions
}

// Cursor is a single-consumer stream over a term's postings, ordered by
// strictly increasing DocID. Concurrent iteration by two owners is
// undefined.
type Cursor interface {
	// Next returns the next record, or ok = false once exhausted.
	Next() (rec PostingRecord, ok bool)
	// Seek positions at the first remaining record with DocID >= docID and
	// returns it, or ok = false if no such record remains. It never
	// rewinds: when the last delivered record already satisfies docID,
	// that record is returned again.
	Seek(docID uint32) (rec PostingRecord, ok bool)
	// Reset rewinds the cursor to before the first record.
	Reset()

	// DocCount is the number of records materialised in this cursor.
	DocCount() int
	// WordOccurrenceTotal is the term's total occurrence count across the
	// materialised records.
	WordOccurrenceTotal() uint64
	// RelDocCount is the number of documents containing the term in the
	// whole index; it exceeds DocCount for partial cursors.
	RelDocCount() int
	// HasPositions reports whether FirstPos is meaningful.
	HasPositions() bool
}

// CursorOptions qualifies a cursor acquisition.
type CursorOptions struct {
	// WithPositions requests meaningful FirstPos values; positional
	// scoring must not run without it.
	WithPositions bool
	// PartialLimit, when positive, permits the source to materialise only
	// the first PartialLimit postings. Zero means the full list.
	PartialLimit int
}

// Source hands out posting cursors. A missing term yields an empty cursor,
// never an error; storage failures surface as errors wrapping ErrIndexIO.
type Source interface {
	OpenCursor(term string, opts CursorOptions) (Cursor, error)
	TotalDocuments() int
}
