package index

// MemorySource serves cursors from posting lists held in memory. It is the
// source of choice for tests and for small corpora pinned by the service at
// startup.
type MemorySource struct {
	postings  map[string][]PostingRecord
	totalDocs int
	positions bool
}

// NewMemorySource builds a source over the given term -> postings map.
// Each list must be sorted by ascending DocID. positions declares whether
// FirstPos carries real offsets.
func NewMemorySource(postings map[string][]PostingRecord, totalDocs int, positions bool) *MemorySource {
	return &MemorySource{
		postings:  postings,
		totalDocs: totalDocs,
		positions: positions,
	}
}

// OpenCursor returns a cursor over term's postings. Unknown terms yield an
// empty cursor.
func (s *MemorySource) OpenCursor(term string, opts CursorOptions) (Cursor, error) {
	recs := s.postings[term]
	full := len(recs)
	if opts.PartialLimit > 0 && len(recs) > opts.PartialLimit {
		recs = recs[:opts.PartialLimit]
	}
	return NewSliceCursor(recs, full, s.positions && opts.WithPositions), nil
}

// TotalDocuments returns the corpus size.
func (s *MemorySource) TotalDocuments() int {
	return s.totalDocs
}
