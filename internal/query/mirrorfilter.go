package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ftsql/ftsql/internal/index"
	pkgerrors "github.com/ftsql/ftsql/pkg/errors"
)

// MirrorAdapter issues a verification statement to the relational mirror
// and returns the single integer column of the result set.
type MirrorAdapter interface {
	QueryIDs(ctx context.Context, sql string) ([]int64, error)
}

// mirrorFilter confirms LIKE candidates against the relational mirror: the
// top ranked candidates are handed to a single LIKE ... AND id IN (...)
// statement and the scored set is intersected with the returned ids.
type mirrorFilter struct {
	adapter MirrorAdapter
	table   string
	field   string
	idField string
	// ids translates internal doc ids to external ids when the mirror's
	// id field is a replacement field; nil means ids pass through.
	ids *index.IDMap
}

// sortBound returns how many candidates are worth verifying: one past the
// caller's end position plus slack, rounded up to the next multiple of
// 100, or fallback when the caller is unbounded.
func sortBound(end, fallback int) int {
	if end <= 0 {
		return fallback
	}
	n := end + 1 + 10
	if rem := n % 100; rem != 0 {
		n += 100 - rem
	}
	return n
}

// apply filters result in place. Before the call result holds every scored
// candidate; afterwards only mirror-confirmed ids remain. With needGroupBy
// set, the pre-filter ids are retained as the group-by companion whenever
// the mirror reduced the set.
func (f *mirrorFilter) apply(ctx context.Context, result *ResultSet, like string, end, fallback int, needGroupBy bool) error {
	if result.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return pkgerrors.ErrCancelled
	}

	candidates := result.Docs()
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Less(candidates[j])
	})
	if bound := sortBound(end, fallback); len(candidates) > bound {
		candidates = candidates[:bound]
	}

	externIDs := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		externIDs = append(externIDs, f.extern(c.DocID))
	}

	confirmed, err := f.adapter.QueryIDs(ctx, buildMirrorSQL(f.table, f.field, f.idField, like, externIDs))
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrMirrorUnavailable, err)
	}

	var companion *roaring.Bitmap
	if needGroupBy {
		companion = roaring.New()
		for _, c := range candidates {
			companion.Add(c.DocID)
		}
	}

	keep := make(map[uint32]struct{}, len(confirmed))
	for _, externID := range confirmed {
		if docID, ok := f.intern(externID); ok {
			keep[docID] = struct{}{}
		}
	}
	for docID := range result.Scores {
		if _, ok := keep[docID]; !ok {
			delete(result.Scores, docID)
		}
	}
	result.RelTotalCount = result.Len()
	if needGroupBy && int(companion.GetCardinality()) > result.Len() {
		result.GroupBy = companion
	}
	return nil
}

func (f *mirrorFilter) extern(docID uint32) int64 {
	if f.ids != nil {
		if externID, ok := f.ids.Extern(docID); ok {
			return externID
		}
	}
	return int64(docID)
}

func (f *mirrorFilter) intern(externID int64) (uint32, bool) {
	if f.ids != nil {
		return f.ids.Intern(externID)
	}
	if externID < 0 || externID > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(externID), true
}

// buildMirrorSQL renders the single verification statement. Identifiers
// are spliced literally; quotes inside the LIKE pattern are escaped by
// doubling.
func buildMirrorSQL(table, field, idField, like string, ids []int64) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(idField)
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE ")
	b.WriteString(field)
	b.WriteString(" LIKE '")
	b.WriteString(strings.ReplaceAll(like, "'", "''"))
	b.WriteString("' AND ")
	b.WriteString(idField)
	b.WriteString(" IN (")
	for i, id := range ids {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%d", id)
	}
	b.WriteString(")")
	return b.String()
}
