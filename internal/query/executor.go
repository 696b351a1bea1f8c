package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ftsql/ftsql/internal/index"
	"github.com/ftsql/ftsql/internal/index/tombstone"
	"github.com/ftsql/ftsql/pkg/config"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
	"github.com/ftsql/ftsql/pkg/metrics"
	"github.com/ftsql/ftsql/pkg/tracing"
)

// Query is one invocation of the execution core. Exactly one of Text and
// Like is set: Text carries a phrase or word list, Like a SQL LIKE literal
// with embedded % wildcards and doubled quotes.
type Query struct {
	Text string
	Like string
	// Field is the mirror column verified on the LIKE path.
	Field     string
	FieldRank int
	Flags     Flags
}

// Executor wires the planner, segmenter, scorer, combiner, deletion filter
// and mirror post-filter into the execute contract. It is safe for
// concurrent use; all per-query state is local.
type Executor struct {
	source    index.Source
	tokenizer Tokenizer
	deleted   *tombstone.Filter
	mirror    *mirrorFilter
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures optional collaborators on an Executor.
type Option func(*Executor)

// WithDeletionFilter installs the tombstone filter applied after scoring.
func WithDeletionFilter(f *tombstone.Filter) Option {
	return func(e *Executor) { e.deleted = f }
}

// WithMirror installs the relational mirror used to verify LIKE queries.
// ids may be nil when the mirror id field needs no translation.
func WithMirror(adapter MirrorAdapter, cfg config.MirrorConfig, ids *index.IDMap) Option {
	return func(e *Executor) {
		e.mirror = &mirrorFilter{
			adapter: adapter,
			table:   cfg.Table,
			idField: cfg.IDField,
			ids:     ids,
		}
	}
}

// WithMetrics installs the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an Executor over the given posting source and
// tokenizer port.
func NewExecutor(source index.Source, tokenizer Tokenizer, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		source:    source,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one query against the index and composes the scored set
// with the borrowed upstream boolean context. The returned set maps doc
// ids to scores; order is unspecified and the caller applies top-K
// iteration. Upstream is never mutated.
func (e *Executor) Execute(ctx context.Context, q Query, upstream *ResultSet) (*ResultSet, error) {
	start := time.Now()
	result, err := e.execute(ctx, q, upstream)
	elapsed := time.Since(start)
	if e.metrics != nil {
		switch {
		case err == nil && result.Len() == 0 && !result.Not:
			e.metrics.QueriesTotal.WithLabelValues("zero_result").Inc()
		case err == nil:
			e.metrics.QueriesTotal.WithLabelValues("ok").Inc()
		case errors.Is(err, pkgerrors.ErrCancelled):
			e.metrics.QueriesTotal.WithLabelValues("cancelled").Inc()
		default:
			e.metrics.QueriesTotal.WithLabelValues("error").Inc()
		}
		if err == nil {
			e.metrics.QueryResultsCount.Observe(float64(result.Len()))
		}
	}
	if err != nil {
		e.logger.Error("query failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	e.logger.Info("query executed",
		"terms", q.Text,
		"like", q.Like != "",
		"results", result.Len(),
		"rel_total", result.RelTotalCount,
		"elapsed", elapsed,
	)
	return result, nil
}

func (e *Executor) execute(ctx context.Context, q Query, upstream *ResultSet) (*ResultSet, error) {
	ctx, span := tracing.StartChildSpan(ctx, "query.execute")
	defer span.End()

	likeSQL := ""
	text := q.Text
	if q.Like != "" {
		if e.mirror != nil && q.Field == "" {
			return nil, fmt.Errorf("%w: like query without a field", pkgerrors.ErrInvalidQuery)
		}
		likeSQL = strings.ReplaceAll(q.Like, "''", "'")
		stripped, err := PrepareLike(q.Like)
		if err != nil {
			return nil, err
		}
		text = stripped
	}

	words := e.tokenizer.Tokenize(text)
	if len(words) == 0 {
		return NewResultSet(), nil
	}

	planner := NewPlanner(e.source, e.cfg.PartialPageSize)
	plan, err := planner.Plan(words, q.FieldRank, q.Flags, len(words) > 1)
	if err != nil {
		return nil, err
	}
	span.SetAttr("terms", len(plan.Terms))
	span.SetAttr("positional", plan.Positional)

	// A negated predicate scores without the upstream context; the
	// complement composition happens afterwards.
	scoreUpstream := upstream
	if q.Flags.Not {
		scoreUpstream = nil
	}

	sc := &scorer{
		fieldRank:      plan.FieldRank,
		minResultCount: e.cfg.GroupByLimit,
	}
	if e.metrics != nil {
		sc.onSaturate = e.metrics.ScoreSaturations.Inc
	}

	groups := segmentTerms(plan.Terms)
	merged := NewResultSet()
	for _, group := range groups {
		rs, err := sc.scoreGroup(ctx, group, plan.Positional, plan.OneWord, scoreUpstream)
		if err != nil {
			return nil, err
		}
		merged.merge(rs)
	}

	result := merged
	if q.Flags.Not {
		result = negate(merged, upstream)
	}

	deletedCount := e.applyDeletions(result)

	if plan.OneWord && upstream == nil && !q.Flags.Not {
		result.RelTotalCount = plan.Terms[0].Cursor.RelDocCount() - deletedCount
	} else {
		result.RelTotalCount = result.Len()
	}

	if likeSQL != "" && e.mirror != nil {
		f := *e.mirror
		f.field = q.Field
		if err := f.apply(ctx, result, likeSQL, q.Flags.End, e.cfg.GroupByLimit, q.Flags.NeedGroupBy); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// negate turns the scored set into the predicate's complement. With a
// positive upstream the complement is materialised against it (the
// upstream survivors not present in scored); otherwise the set is only
// marked, leaving materialisation to the caller.
func negate(scored *ResultSet, upstream *ResultSet) *ResultSet {
	if upstream != nil && !upstream.Not {
		out := NewResultSet()
		for docID, score := range upstream.Scores {
			if !scored.Contains(docID) {
				out.Scores[docID] = score
			}
		}
		return out
	}
	scored.Not = true
	return scored
}

// applyDeletions drops tombstoned keys from a regular result set and
// returns how many were removed. Complement-marked sets are left alone;
// their keys are exclusions, not results.
func (e *Executor) applyDeletions(result *ResultSet) int {
	if e.deleted == nil || result.Not {
		return 0
	}
	deleted := 0
	for docID := range result.Scores {
		if e.deleted.Contains(docID) {
			delete(result.Scores, docID)
			deleted++
		}
	}
	if deleted > 0 && e.metrics != nil {
		e.metrics.DeletedDropped.Add(float64(deleted))
	}
	return deleted
}

// Top selects the best entries of result under the configured bound using
// the radix selector and returns them in iteration order.
func (e *Executor) Top(result *ResultSet, top int) []ScoredDoc {
	if top <= 0 {
		top = e.cfg.Top
	}
	sel := NewTopK(top)
	for docID, score := range result.Scores {
		sel.Add(ScoredDoc{DocID: docID, Score: score})
	}
	docs := make([]ScoredDoc, 0, top)
	it := sel.Iterator()
	for {
		doc, ok := it.Next()
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	return docs
}
