// Package cache is the redis-backed query result cache. Entries are keyed
// by the query text, LIKE literal, field and field rank plus execution
// flags; concurrent identical
// misses are collapsed through singleflight, and redis outages degrade to
// misses behind a circuit breaker.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ftsql/ftsql/internal/query"
	"github.com/ftsql/ftsql/pkg/config"
	"github.com/ftsql/ftsql/pkg/metrics"
	pkgredis "github.com/ftsql/ftsql/pkg/redis"
	"github.com/ftsql/ftsql/pkg/resilience"
)

const keyPrefix = "query:"

// entry is the serialised form of a cached result set.
type entry struct {
	Scores        map[uint32]int64 `json:"scores"`
	Not           bool             `json:"not,omitempty"`
	RelTotalCount int              `json:"rel_total_count"`
	GroupBy       []uint32         `json:"group_by,omitempty"`
}

// QueryCache caches executed result sets in redis.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a QueryCache. m may be nil when metrics are disabled.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.Config{}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for the query, if present.
func (c *QueryCache) Get(ctx context.Context, q query.Query) (*query.ResultSet, bool) {
	key := c.buildKey(q)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		c.miss()
		return nil, false
	}
	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return e.toResult(), true
}

// Set stores a computed result for the query.
func (c *QueryCache) Set(ctx context.Context, q query.Query, result *query.ResultSet) {
	key := c.buildKey(q)
	data, err := json.Marshal(fromResult(result))
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes, stores, and returns
// it. Concurrent callers with the same key share one computation. The
// second return reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q query.Query,
	computeFn func() (*query.ResultSet, error),
) (*query.ResultSet, bool, error) {
	if result, ok := c.Get(ctx, q); ok {
		return result, true, nil
	}
	key := c.buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, q); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*query.ResultSet), false, nil
}

// Invalidate drops every cached query result. The delete endpoint calls
// this after publishing a tombstone, and the cache-invalidate endpoint
// calls it on demand.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the query text and flags into a stable redis key.
func (c *QueryCache) buildKey(q query.Query) string {
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteString("\x00")
	b.WriteString(q.Like)
	b.WriteString("\x00")
	b.WriteString(q.Field)
	fmt.Fprintf(&b, "\x00%d\x00%+v", q.FieldRank, q.Flags)
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func fromResult(r *query.ResultSet) entry {
	e := entry{
		Scores:        r.Scores,
		Not:           r.Not,
		RelTotalCount: r.RelTotalCount,
	}
	if r.GroupBy != nil {
		e.GroupBy = r.GroupBy.ToArray()
	}
	return e
}

func (e entry) toResult() *query.ResultSet {
	r := query.NewResultSet()
	if e.Scores != nil {
		r.Scores = e.Scores
	}
	r.Not = e.Not
	r.RelTotalCount = e.RelTotalCount
	if len(e.GroupBy) > 0 {
		r.GroupBy = roaring.BitmapOf(e.GroupBy...)
	}
	return r
}
