package storage

import (
	"sync"
	"sync/atomic"

	"github.com/c360/spotstream/spot"
)

// StoredSpot is a spot plus the per-queue sequence number assigned at
// insertion. Sequences are 1-based, strictly increasing, and never reused;
// eviction retires a sequence permanently, leaving a visible gap.
type StoredSpot struct {
	Seq  uint64    `json:"seq"`
	Spot spot.Spot `json:"spot"`
}

// entry pairs a stored spot with its serialized size so eviction never has
// to re-serialize.
type entry struct {
	stored StoredSpot
	size   int
}

// TenantQueue is a bounded, ordered (oldest-first) retention buffer for the
// spots matching one filter. It is owned exclusively by the Manager and
// mutated only through the Manager's insertion path; readers take the shared
// lock and never mutate.
type TenantQueue struct {
	name       string
	maxEntries int

	mu      sync.RWMutex
	items   []entry // fixed-capacity ring
	head    int     // next write position
	tail    int     // oldest entry
	count   int
	nextSeq uint64 // next sequence to assign, starts at 1

	// Read lock-free by metrics.
	overflow atomic.Uint64
	bytes    atomic.Int64
}

func newTenantQueue(name string, maxEntries int) *TenantQueue {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &TenantQueue{
		name:       name,
		maxEntries: maxEntries,
		items:      make([]entry, maxEntries),
		nextSeq:    1,
	}
}

// Name returns the queue's filter name.
func (q *TenantQueue) Name() string { return q.name }

// MaxEntries returns the configured entry-count budget.
func (q *TenantQueue) MaxEntries() int { return q.maxEntries }

// Len returns the current number of stored spots.
func (q *TenantQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// OverflowCount returns the number of entries ever evicted from this queue,
// by its own limit or by global pressure.
func (q *TenantQueue) OverflowCount() uint64 {
	return q.overflow.Load()
}

// SizeBytes returns the queue's current serialized byte total.
func (q *TenantQueue) SizeBytes() int64 {
	return q.bytes.Load()
}

// append assigns the next sequence and stores the spot, first evicting
// oldest entries until the queue is under its entry budget. Returns the
// stored spot and the net byte delta applied to this queue (the caller
// applies the same delta to the global total).
func (q *TenantQueue) append(s spot.Spot, size int) (StoredSpot, int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var freed int64
	for q.count >= q.maxEntries {
		freed += int64(q.popOldestLocked())
	}

	stored := StoredSpot{Seq: q.nextSeq, Spot: s}
	q.nextSeq++

	q.items[q.head] = entry{stored: stored, size: size}
	q.head = (q.head + 1) % len(q.items)
	q.count++
	q.bytes.Add(int64(size))

	return stored, int64(size) - freed
}

// evictOldest removes the single oldest entry, returning its size in bytes.
// Returns 0, false when the queue is empty.
func (q *TenantQueue) evictOldest() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return 0, false
	}
	return q.popOldestLocked(), true
}

// popOldestLocked removes the oldest entry. Caller holds the write lock and
// has checked the queue is non-empty.
func (q *TenantQueue) popOldestLocked() int {
	size := q.items[q.tail].size
	q.items[q.tail] = entry{}
	q.tail = (q.tail + 1) % len(q.items)
	q.count--
	q.overflow.Add(1)
	q.bytes.Add(int64(-size))
	return size
}

// snapshotLocked copies entries with sequence > cursor, oldest first.
// Caller holds at least the read lock.
func (q *TenantQueue) snapshotLocked(cursor uint64) []StoredSpot {
	out := make([]StoredSpot, 0, q.count)
	for i := 0; i < q.count; i++ {
		e := q.items[(q.tail+i)%len(q.items)]
		if e.stored.Seq > cursor {
			out = append(out, e.stored)
		}
	}
	return out
}

// latestSeqLocked returns the newest stored sequence, or 0 when empty.
// Caller holds at least the read lock.
func (q *TenantQueue) latestSeqLocked() uint64 {
	if q.count == 0 {
		return 0
	}
	newest := (q.head - 1 + len(q.items)) % len(q.items)
	return q.items[newest].stored.Seq
}

// List returns a snapshot of all stored spots oldest-first, the latest
// sequence number, and the overflow count.
func (q *TenantQueue) List() ([]StoredSpot, uint64, uint64) {
	return q.ListSince(0)
}

// ListSince returns the subset of the snapshot with sequence > cursor. A
// cursor beyond the latest sequence yields an empty result, not an error.
func (q *TenantQueue) ListSince(cursor uint64) ([]StoredSpot, uint64, uint64) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snapshotLocked(cursor), q.latestSeqLocked(), q.overflow.Load()
}
