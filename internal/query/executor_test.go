package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ftsql/ftsql/internal/index"
	"github.com/ftsql/ftsql/internal/index/tombstone"
	"github.com/ftsql/ftsql/pkg/config"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
)

// wordTokenizer splits on spaces, assigning rank 1 and the byte offset of
// each word. It stands in for the production tokenizer port.
type wordTokenizer struct{}

func (wordTokenizer) Tokenize(text string) []Word {
	var words []Word
	offset := 0
	for _, field := range strings.Split(text, " ") {
		if field != "" {
			words = append(words, Word{Word: field, Rank: 1, Position: offset})
		}
		offset += len(field) + 1
	}
	return words
}

type fakeMirror struct {
	lastSQL string
	ids     []int64
	err     error
}

func (m *fakeMirror) QueryIDs(ctx context.Context, sql string) ([]int64, error) {
	m.lastSQL = sql
	return m.ids, m.err
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		Top:             10,
		GroupByLimit:    3,
		PartialPageSize: 100,
	}
}

func newTestExecutor(postings map[string][]index.PostingRecord, totalDocs int, opts ...Option) *Executor {
	src := index.NewMemorySource(postings, totalDocs, false)
	return NewExecutor(src, wordTokenizer{}, searchConfig(), opts...)
}

func TestExecuteEmptyQuery(t *testing.T) {
	e := newTestExecutor(nil, 10)
	result, err := e.Execute(context.Background(), Query{Text: "   ", FieldRank: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Len() != 0 {
		t.Fatalf("empty query must yield an empty set, got %d", result.Len())
	}
}

func TestExecuteMissingTerm(t *testing.T) {
	e := newTestExecutor(map[string][]index.PostingRecord{
		"alpha": {{DocID: 1, TermFreq: 1, DocTerms: 5}},
	}, 10)
	result, err := e.Execute(context.Background(), Query{Text: "missing", FieldRank: 1}, nil)
	if err != nil {
		t.Fatalf("missing term is not an error: %v", err)
	}
	if result.Len() != 0 {
		t.Fatalf("missing term must yield an empty set, got %d", result.Len())
	}
}

func TestExecuteOneWordThreshold(t *testing.T) {
	freqs := []uint32{2, 5, 3, 1, 6, 4}
	recs := make([]index.PostingRecord, len(freqs))
	for i, f := range freqs {
		recs[i] = index.PostingRecord{DocID: uint32(i + 1), TermFreq: f, DocTerms: 10}
	}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10)

	result, err := e.Execute(context.Background(), Query{
		Text:      "alpha",
		FieldRank: 1,
		Flags:     Flags{CanLoadPartOfDocs: true, NoAndExpression: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, docID := range []uint32{1, 2, 3, 5} {
		if !result.Contains(docID) {
			t.Errorf("doc %d must be admitted", docID)
		}
	}
	for _, docID := range []uint32{4, 6} {
		if result.Contains(docID) {
			t.Errorf("doc %d must be dropped by early termination", docID)
		}
	}
	// One-word path without upstream reports the relation doc count.
	if result.RelTotalCount != 6 {
		t.Errorf("RelTotalCount = %d, want cursor rel count 6", result.RelTotalCount)
	}
}

func TestExecuteDeletionFilter(t *testing.T) {
	recs := []index.PostingRecord{
		{DocID: 1, TermFreq: 1, DocTerms: 5},
		{DocID: 2, TermFreq: 1, DocTerms: 5},
		{DocID: 3, TermFreq: 1, DocTerms: 5},
	}
	deletions := tombstone.NewFilter(nil)
	deletions.Add(2)

	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10,
		WithDeletionFilter(deletions))

	result, err := e.Execute(context.Background(), Query{Text: "alpha", FieldRank: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Contains(2) {
		t.Error("tombstoned doc must be dropped")
	}
	if !result.Contains(1) || !result.Contains(3) {
		t.Error("live docs must survive")
	}
	if result.RelTotalCount != 2 {
		t.Errorf("RelTotalCount = %d, want result size 2", result.RelTotalCount)
	}
}

func TestExecuteDeletionAdjustsRelTotalOnOneWordPath(t *testing.T) {
	recs := make([]index.PostingRecord, 6)
	for i := range recs {
		recs[i] = index.PostingRecord{DocID: uint32(i + 1), TermFreq: 2, DocTerms: 10}
	}
	deletions := tombstone.NewFilter(nil)
	deletions.Add(1)

	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10,
		WithDeletionFilter(deletions))
	result, err := e.Execute(context.Background(), Query{
		Text:      "alpha",
		FieldRank: 1,
		Flags:     Flags{CanLoadPartOfDocs: true, NoAndExpression: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// rel_total_count = cursor.rel_doc_count - deleted_count.
	if result.RelTotalCount != 5 {
		t.Errorf("RelTotalCount = %d, want 6 - 1", result.RelTotalCount)
	}
}

func TestExecuteNotWithUpstream(t *testing.T) {
	recs := []index.PostingRecord{
		{DocID: 1, TermFreq: 1, DocTerms: 5},
		{DocID: 2, TermFreq: 1, DocTerms: 5},
	}
	upstream := NewResultSet()
	upstream.Scores[1] = 10
	upstream.Scores[5] = 50

	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10)
	result, err := e.Execute(context.Background(), Query{
		Text:      "alpha",
		FieldRank: 1,
		Flags:     Flags{Not: true},
	}, upstream)
	if err != nil {
		t.Fatal(err)
	}
	// Upstream survivors not matched by the negated predicate.
	if result.Contains(1) {
		t.Error("doc 1 matches the predicate and must be excluded")
	}
	if !result.Contains(5) || result.Score(5) != 50 {
		t.Error("doc 5 must survive with its upstream score")
	}
	if result.Not {
		t.Error("materialised complement must not carry the Not flag")
	}
}

func TestExecuteNotWithoutUpstream(t *testing.T) {
	recs := []index.PostingRecord{{DocID: 1, TermFreq: 1, DocTerms: 5}}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10)
	result, err := e.Execute(context.Background(), Query{
		Text:      "alpha",
		FieldRank: 1,
		Flags:     Flags{Not: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Not {
		t.Error("negated predicate without upstream must mark the complement")
	}
	if !result.Contains(1) {
		t.Error("complement keys are the matched docs")
	}
}

func TestExecuteLikePostFilter(t *testing.T) {
	recs := []index.PostingRecord{
		{DocID: 10, TermFreq: 1, DocTerms: 5},
		{DocID: 11, TermFreq: 2, DocTerms: 5},
		{DocID: 12, TermFreq: 3, DocTerms: 5},
	}
	adapter := &fakeMirror{ids: []int64{11, 12}}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10,
		WithMirror(adapter, config.MirrorConfig{Table: "documents", IDField: "doc_id"}, nil))

	result, err := e.Execute(context.Background(), Query{
		Like:      "%alpha%",
		Field:     "body",
		FieldRank: 1,
		Flags:     Flags{NeedGroupBy: true},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Len() != 2 || !result.Contains(11) || !result.Contains(12) {
		t.Fatalf("mirror must reduce the set to {11, 12}, got %+v", result.Scores)
	}
	if result.GroupBy == nil || result.GroupBy.GetCardinality() != 3 {
		t.Fatal("group-by companion must retain the pre-filter ids")
	}
	for _, docID := range []uint32{10, 11, 12} {
		if !result.GroupBy.Contains(docID) {
			t.Errorf("companion missing doc %d", docID)
		}
	}
	wantSQL := "SELECT doc_id FROM documents WHERE body LIKE '%alpha%' AND doc_id IN ("
	if !strings.HasPrefix(adapter.lastSQL, wantSQL) {
		t.Errorf("mirror SQL = %q, want prefix %q", adapter.lastSQL, wantSQL)
	}
}

func TestExecuteLikeEscapesQuotes(t *testing.T) {
	recs := []index.PostingRecord{{DocID: 1, TermFreq: 1, DocTerms: 5}}
	adapter := &fakeMirror{ids: []int64{1}}
	e := newTestExecutor(map[string][]index.PostingRecord{"oreilly's": recs}, 10,
		WithMirror(adapter, config.MirrorConfig{Table: "documents", IDField: "doc_id"}, nil))

	_, err := e.Execute(context.Background(), Query{
		Like:      "%oreilly''s%",
		Field:     "body",
		FieldRank: 1,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(adapter.lastSQL, "LIKE '%oreilly''s%'") {
		t.Errorf("quotes must be doubled in mirror SQL, got %q", adapter.lastSQL)
	}
}

func TestExecuteLikeInvalid(t *testing.T) {
	e := newTestExecutor(nil, 10)
	_, err := e.Execute(context.Background(), Query{Like: "%%", FieldRank: 1}, nil)
	if !errors.Is(err, pkgerrors.ErrInvalidQuery) {
		t.Fatalf("want ErrInvalidQuery, got %v", err)
	}
}

func TestExecuteMirrorFailure(t *testing.T) {
	recs := []index.PostingRecord{{DocID: 1, TermFreq: 1, DocTerms: 5}}
	adapter := &fakeMirror{err: errors.New("connection refused")}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10,
		WithMirror(adapter, config.MirrorConfig{Table: "documents", IDField: "doc_id"}, nil))

	_, err := e.Execute(context.Background(), Query{Like: "%alpha%", Field: "body", FieldRank: 1}, nil)
	if !errors.Is(err, pkgerrors.ErrMirrorUnavailable) {
		t.Fatalf("want ErrMirrorUnavailable, got %v", err)
	}
}

func TestExecuteLikeTranslatesIDs(t *testing.T) {
	ids := index.NewIDMap()
	ids.Put(1, 9001)
	ids.Put(2, 9002)
	recs := []index.PostingRecord{
		{DocID: 1, TermFreq: 1, DocTerms: 5},
		{DocID: 2, TermFreq: 1, DocTerms: 5},
	}
	adapter := &fakeMirror{ids: []int64{9002}}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10,
		WithMirror(adapter, config.MirrorConfig{Table: "documents", IDField: "ext_id"}, ids))

	result, err := e.Execute(context.Background(), Query{Like: "%alpha%", Field: "body", FieldRank: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Len() != 1 || !result.Contains(2) {
		t.Fatalf("confirmed external id must translate back to doc 2, got %+v", result.Scores)
	}
	if !strings.Contains(adapter.lastSQL, "IN (9001,9002)") && !strings.Contains(adapter.lastSQL, "IN (9002,9001)") {
		t.Errorf("mirror SQL must carry external ids, got %q", adapter.lastSQL)
	}
}

func TestExecuteCancellation(t *testing.T) {
	recs := []index.PostingRecord{{DocID: 1, TermFreq: 1, DocTerms: 5}}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, Query{Text: "alpha", FieldRank: 1}, nil)
	if !errors.Is(err, pkgerrors.ErrCancelled) {
		t.Fatalf("want ErrCancelled, got %v", err)
	}
}

func TestExecuteUpstreamComposition(t *testing.T) {
	recs := []index.PostingRecord{
		{DocID: 1, TermFreq: 1, DocTerms: 5},
		{DocID: 2, TermFreq: 1, DocTerms: 5},
	}
	upstream := NewResultSet()
	upstream.Scores[2] = 1000

	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 10)
	result, err := e.Execute(context.Background(), Query{Text: "alpha", FieldRank: 1}, upstream)
	if err != nil {
		t.Fatal(err)
	}
	if result.Contains(1) {
		t.Error("doc absent upstream must be dropped under AND composition")
	}
	if !result.Contains(2) {
		t.Fatal("doc present upstream must survive")
	}
	if result.Score(2) <= 1000 {
		t.Errorf("survivor must carry its own score plus the upstream score, got %d", result.Score(2))
	}
}

func TestTopSelection(t *testing.T) {
	recs := make([]index.PostingRecord, 30)
	for i := range recs {
		recs[i] = index.PostingRecord{DocID: uint32(i + 1), TermFreq: uint32(i%7 + 1), DocTerms: 10}
	}
	e := newTestExecutor(map[string][]index.PostingRecord{"alpha": recs}, 100)
	result, err := e.Execute(context.Background(), Query{Text: "alpha", FieldRank: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	top := e.Top(result, 5)
	if len(top) != 5 {
		t.Fatalf("want 5 ranked docs, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if radixOf(top[i].Score) > radixOf(top[i-1].Score) {
			t.Error("iteration must descend by radix bucket")
		}
	}
}
