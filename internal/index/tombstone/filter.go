// Package tombstone maintains the process-wide deletion filter: a roaring
// bitmap of tombstoned doc ids, fed by the document-tombstone Kafka topic
// and consulted by the query core after scoring.
package tombstone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ftsql/ftsql/pkg/kafka"
)

// Event is the payload published for each document deletion.
type Event struct {
	DocID     uint32 `json:"doc_id"`
	DeletedAt int64  `json:"deleted_at"`
}

// Filter is a concurrent membership structure over deleted doc ids.
// Queries share it read-only; only the tombstone consumer writes.
type Filter struct {
	mu      sync.RWMutex
	deleted *roaring.Bitmap
	logger  *slog.Logger
	applied func()
}

// NewFilter returns an empty filter. onApply, if non-nil, is invoked once
// per tombstone added (metrics hook).
func NewFilter(onApply func()) *Filter {
	return &Filter{
		deleted: roaring.New(),
		logger:  slog.Default().With("component", "deletion-filter"),
		applied: onApply,
	}
}

// Add marks docID deleted.
func (f *Filter) Add(docID uint32) {
	f.mu.Lock()
	added := f.deleted.CheckedAdd(docID)
	f.mu.Unlock()
	if added && f.applied != nil {
		f.applied()
	}
}

// Contains reports whether docID is tombstoned.
func (f *Filter) Contains(docID uint32) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deleted.Contains(docID)
}

// Cardinality returns the number of tombstoned documents.
func (f *Filter) Cardinality() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deleted.GetCardinality()
}

// Handler returns a kafka.MessageHandler that applies tombstone events to
// the filter. The consumer belongs to the configured consumer group and
// commits offsets, so it reads the topic from the first offset only when
// the group has no committed offset; tombstones consumed before a restart
// are not applied again to the new, empty filter.
func (f *Filter) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			return fmt.Errorf("decoding tombstone: %w", err)
		}
		f.Add(event.DocID)
		f.logger.Debug("tombstone applied", "doc_id", event.DocID)
		return nil
	}
}
