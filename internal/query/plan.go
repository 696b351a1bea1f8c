package query

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ftsql/ftsql/internal/index"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
)

// TermEntry aggregates one distinct query word with its posting cursor and
// the per-term statics derived at planning time.
type TermEntry struct {
	Word          string
	QueryCount    int64 // occurrences of the word in the query
	QueryRank     int64 // sum of per-occurrence ranks, clamped >= 1
	FirstPosition int   // earliest offset in the query string
	Cursor        index.Cursor
	IDF           int64
	NormDT        int64 // floor(sqrt(word_occurrence_total))
}

// end returns the first query offset past the term's occupied range.
func (t *TermEntry) end() int {
	return t.FirstPosition + len(t.Word)
}

// Plan is the planned form of one query: term entries with cursors
// attached and the global rank normaliser.
type Plan struct {
	Terms     []*TermEntry
	FieldRank int64
	// NormRanks is floor(sqrt(sum of query_rank^2)), exported for callers
	// that length-normalise; the core does not apply it internally.
	NormRanks int64
	// OneWord marks the single-term early-termination path.
	OneWord bool
	// Positional is true when every cursor carries meaningful positions.
	Positional bool
	TotalDocs  int
}

// Planner turns tokenized query words into a Plan, acquiring one posting
// cursor per distinct word.
type Planner struct {
	source       index.Source
	partialLimit int
}

// NewPlanner creates a Planner over source. partialLimit bounds partial
// cursor materialisation on the one-word path.
func NewPlanner(source index.Source, partialLimit int) *Planner {
	return &Planner{source: source, partialLimit: partialLimit}
}

// Plan builds term entries for words, acquiring cursors and computing the
// per-term statics. fieldRank below 1 is clamped to 1.
func (p *Planner) Plan(words []Word, fieldRank int, flags Flags, withPositions bool) (*Plan, error) {
	if fieldRank < 1 {
		fieldRank = 1
	}
	byWord := make(map[string]*TermEntry, len(words))
	terms := make([]*TermEntry, 0, len(words))
	for _, w := range words {
		rank := int64(w.Rank)
		if rank < 1 {
			rank = 1
		}
		if entry, ok := byWord[w.Word]; ok {
			entry.QueryCount++
			entry.QueryRank += rank
			continue
		}
		entry := &TermEntry{
			Word:          w.Word,
			QueryCount:    1,
			QueryRank:     rank,
			FirstPosition: w.Position,
		}
		byWord[w.Word] = entry
		terms = append(terms, entry)
	}

	oneWord := flags.CanLoadPartOfDocs && flags.NoAndExpression && len(terms) == 1
	totalDocs := p.source.TotalDocuments()

	positional := withPositions && len(terms) > 0
	for _, entry := range terms {
		opts := index.CursorOptions{WithPositions: withPositions}
		if oneWord {
			opts.PartialLimit = p.partialLimit
		}
		cursor, err := p.source.OpenCursor(entry.Word, opts)
		if err != nil {
			return nil, fmt.Errorf("acquiring cursor for %q: %w", entry.Word, err)
		}
		entry.Cursor = cursor
		entry.IDF = idf(totalDocs, cursor.DocCount())
		entry.NormDT = normDT(cursor.WordOccurrenceTotal())
		if !cursor.HasPositions() {
			positional = false
		}
	}

	var rankSq int64
	for _, entry := range terms {
		sq, _ := mulSat(entry.QueryRank, entry.QueryRank)
		rankSq, _ = addSat(rankSq, sq)
	}

	return &Plan{
		Terms:      terms,
		FieldRank:  int64(fieldRank),
		NormRanks:  int64(math.Sqrt(float64(rankSq))),
		OneWord:    oneWord,
		Positional: positional,
		TotalDocs:  totalDocs,
	}, nil
}

// idf computes the integer inverse document frequency
// floor(log10(total/docCount + 1)) + 1.
func idf(totalDocs, docCount int) int64 {
	if docCount <= 0 {
		return 1
	}
	return int64(math.Log10(float64(totalDocs/docCount+1))) + 1
}

// normDT computes the per-term document-length normaliser
// floor(sqrt(word_occurrence_total)), clamped to at least 1.
func normDT(occurrenceTotal uint64) int64 {
	n := int64(math.Sqrt(float64(occurrenceTotal)))
	if n < 1 {
		n = 1
	}
	return n
}

// PrepareLike strips % wildcards from a LIKE literal and collapses doubled
// quotes, returning the text handed to the tokenizer. An empty remainder
// is an invalid query.
func PrepareLike(like string) (string, error) {
	text := strings.ReplaceAll(like, "%", "")
	text = strings.ReplaceAll(text, "''", "'")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty like pattern after stripping wildcards", pkgerrors.ErrInvalidQuery)
	}
	return text, nil
}

// sortByDocCount orders terms by ascending cursor doc count so the
// cheapest cursor drives the intersection.
func sortByDocCount(terms []*TermEntry) []*TermEntry {
	sorted := make([]*TermEntry, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cursor.DocCount() < sorted[j].Cursor.DocCount()
	})
	return sorted
}

// sortByQueryPosition orders terms by their first position in the query
// string, the order proximity deltas are computed in.
func sortByQueryPosition(terms []*TermEntry) []*TermEntry {
	sorted := make([]*TermEntry, len(terms))
	copy(sorted, terms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FirstPosition < sorted[j].FirstPosition
	})
	return sorted
}
