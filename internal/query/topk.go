package query

import "sort"

// numRadixBuckets covers ranks 0..65535 at a granularity of 256 plus four
// coarse overflow buckets.
const numRadixBuckets = 260

// radixOf maps a non-negative rank to its coarse bucket.
func radixOf(rank int64) int {
	switch {
	case rank < 65536:
		return int(rank / 256)
	case rank < 100_000:
		return 256
	case rank < 1_000_000:
		return 257
	case rank < 10_000_000:
		return 258
	default:
		return 259
	}
}

// TopK retains the best documents under a configurable bound using coarse
// radix buckets, avoiding a full sort of the candidate set. Entries that
// can no longer reach the top are counted but not stored.
type TopK struct {
	top      int
	buckets  [numRadixBuckets][]ScoredDoc
	sorted   [numRadixBuckets]bool
	minRadix int
	maxRadix int
	total    int
}

// NewTopK creates a selector bounded to the best top entries. top must be
// positive.
func NewTopK(top int) *TopK {
	return &TopK{top: top, maxRadix: -1}
}

// Add offers a scored document to the selector.
func (t *TopK) Add(doc ScoredDoc) {
	t.total++
	b := radixOf(doc.Score)
	if b < t.minRadix {
		return
	}
	t.buckets[b] = append(t.buckets[b], doc)
	if b > t.maxRadix {
		t.maxRadix = b
	}
	if t.total%t.top == 0 {
		t.shrink()
	}
}

// Total returns the number of documents offered, stored or not.
func (t *TopK) Total() int {
	return t.total
}

// shrink raises minRadix to the highest bucket at which the stored count
// first exceeds the bound, discarding everything below.
func (t *TopK) shrink() {
	running := 0
	for b := t.maxRadix; b >= 0; b-- {
		running += len(t.buckets[b])
		if running > t.top {
			if b > t.minRadix {
				for low := t.minRadix; low < b; low++ {
					t.buckets[low] = nil
				}
				t.minRadix = b
			}
			return
		}
	}
}

// Iterator starts a descending iteration over the retained entries.
func (t *TopK) Iterator() *TopKIterator {
	return &TopKIterator{sel: t, radix: t.maxRadix}
}

// TopKIterator walks buckets from the highest radix downward, lazily
// sorting each bucket on first visit, and yields at most the selector's
// bound. Order within a bucket is the standard ScoredDoc order; exact
// ordering across adjacent buckets is not guaranteed by construction.
type TopKIterator struct {
	sel     *TopK
	radix   int
	index   int
	yielded int
}

// Next returns the next retained entry, or ok = false when the iteration
// is exhausted or the bound is reached.
func (it *TopKIterator) Next() (ScoredDoc, bool) {
	if it.yielded >= it.sel.top {
		return ScoredDoc{}, false
	}
	for it.radix >= it.sel.minRadix {
		bucket := it.sel.buckets[it.radix]
		if it.index == 0 && len(bucket) > 1 && !it.sel.sorted[it.radix] {
			sort.Slice(bucket, func(i, j int) bool {
				return bucket[i].Less(bucket[j])
			})
			it.sel.sorted[it.radix] = true
		}
		if it.index < len(bucket) {
			doc := bucket[it.index]
			it.index++
			it.yielded++
			return doc, true
		}
		it.radix--
		it.index = 0
	}
	return ScoredDoc{}, false
}
