package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/ftsql/ftsql/internal/index"
	"github.com/ftsql/ftsql/internal/query"
	"github.com/ftsql/ftsql/pkg/config"
)

type fieldTokenizer struct{}

func (fieldTokenizer) Tokenize(text string) []query.Word {
	words := []query.Word{}
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == ' ' {
			if i > start {
				words = append(words, query.Word{Word: text[start:i], Rank: 1, Position: start})
			}
			start = i + 1
		}
	}
	return words
}

func buildPostings(numDocs int) map[string][]index.PostingRecord {
	terms := []string{"alpha", "beta", "gamma"}
	postings := make(map[string][]index.PostingRecord, len(terms))
	for ti, term := range terms {
		recs := make([]index.PostingRecord, 0, numDocs)
		for d := 0; d < numDocs; d++ {
			if d%(ti+1) != 0 {
				continue
			}
			recs = append(recs, index.PostingRecord{
				DocID:    uint32(d + 1),
				TermFreq: uint32(d%9 + 1),
				DocTerms: 120,
				FirstPos: uint32(ti * 10),
			})
		}
		postings[term] = recs
	}
	return postings
}

func benchExecutor(numDocs int, positions bool) *query.Executor {
	src := index.NewMemorySource(buildPostings(numDocs), numDocs*2, positions)
	cfg := config.SearchConfig{Top: 10, GroupByLimit: 300, PartialPageSize: 4096}
	return query.NewExecutor(src, fieldTokenizer{}, cfg)
}

// BenchmarkSimpleScoring measures driver/probe intersection and TF/IDF
// scoring for growing posting lists.
func BenchmarkSimpleScoring(b *testing.B) {
	for _, numDocs := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			exec := benchExecutor(numDocs, false)
			q := query.Query{Text: "alpha beta gamma", FieldRank: 1}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), q, nil)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkPositionalScoring measures the proximity-factor path.
func BenchmarkPositionalScoring(b *testing.B) {
	for _, numDocs := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			exec := benchExecutor(numDocs, true)
			q := query.Query{Text: "alpha beta", FieldRank: 1}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), q, nil)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkTopKSelection measures radix-bucketed top-K against candidate
// sets of varying size.
func BenchmarkTopKSelection(b *testing.B) {
	for _, candidates := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("candidates_%d", candidates), func(b *testing.B) {
			docs := make([]query.ScoredDoc, candidates)
			for i := range docs {
				docs[i] = query.ScoredDoc{DocID: uint32(i), Score: int64((i * 7919) % 2_000_000)}
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sel := query.NewTopK(100)
				for _, doc := range docs {
					sel.Add(doc)
				}
				it := sel.Iterator()
				for {
					if _, ok := it.Next(); !ok {
						break
					}
				}
			}
		})
	}
}
