// Package mirror adapts the relational mirror database to the query core's
// MirrorAdapter port. The mirror holds the authoritative row data; LIKE
// queries are verified against it over the top ranked candidates only.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/ftsql/ftsql/pkg/metrics"
	"github.com/ftsql/ftsql/pkg/postgres"
)

// Adapter issues verification statements through a pooled postgres client.
// The connection is held only for the duration of one call.
type Adapter struct {
	client  *postgres.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Adapter. m may be nil when metrics are disabled.
func New(client *postgres.Client, m *metrics.Metrics) *Adapter {
	return &Adapter{
		client:  client,
		metrics: m,
		logger:  slog.Default().With("component", "mirror-adapter"),
	}
}

// QueryIDs runs the statement and returns its single integer column.
func (a *Adapter) QueryIDs(ctx context.Context, sql string) ([]int64, error) {
	start := time.Now()
	ids, err := a.client.QueryIDs(ctx, sql)
	if err != nil {
		a.logger.Error("mirror query failed", "error", err)
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.MirrorLatency.Observe(time.Since(start).Seconds())
		a.metrics.MirrorRowsReturned.Observe(float64(len(ids)))
	}
	a.logger.Debug("mirror query executed",
		"rows", len(ids),
		"elapsed", time.Since(start),
	)
	return ids, nil
}
