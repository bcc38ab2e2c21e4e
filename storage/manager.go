// Package storage keeps a bounded, queryable window of matched spots per
// filter. Each filter owns one sequence-numbered queue with its own entry
// budget; the Manager enforces a global byte budget across all queues with
// proportional eviction, so one high-volume filter cannot starve the rest.
package storage

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/filter"
	"github.com/c360/spotstream/spot"
)

// Observer is notified after a spot has been stored in a queue. Called
// outside all storage locks; implementations must not block ingestion for
// long.
type Observer func(tenant string, stored StoredSpot)

// Config holds the storage budgets resolved by the configuration loader.
type Config struct {
	// GlobalMaxBytes is the byte budget across all queues.
	GlobalMaxBytes int64

	// DefaultMaxEntries is the per-queue entry budget, unless a filter
	// overrides it.
	DefaultMaxEntries int
}

// Manager owns every tenant queue and runs the filter-match-store path.
type Manager struct {
	predicates []filter.Predicate
	queues     []*TenantQueue
	byName     map[string]int

	globalMaxBytes int64
	totalBytes     atomic.Int64
	globalEvicted  atomic.Uint64
	oversized      atomic.Uint64

	observers []Observer
	logger    *slog.Logger
}

// NewManager builds a manager from the validated, immutable predicate list.
// Unnamed filters get positional names ("filter_0", ...) so metrics labels
// and retrieval paths always have something to address.
func NewManager(cfg Config, predicates []filter.Predicate, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		predicates:     predicates,
		queues:         make([]*TenantQueue, len(predicates)),
		byName:         make(map[string]int, len(predicates)),
		globalMaxBytes: cfg.GlobalMaxBytes,
		logger:         logger.With("component", "storage"),
	}

	for i := range predicates {
		name := predicates[i].Name
		if name == "" {
			name = positionalName(i)
		}
		maxEntries := cfg.DefaultMaxEntries
		if predicates[i].MaxKeptEntries != nil {
			maxEntries = *predicates[i].MaxKeptEntries
		}
		m.queues[i] = newTenantQueue(name, maxEntries)
		m.byName[name] = i
	}

	return m
}

// AddObserver registers a store notification callback. Not safe to call
// once ingestion has started.
func (m *Manager) AddObserver(obs Observer) {
	m.observers = append(m.observers, obs)
}

// OnSpot runs every predicate against the spot and appends it to each
// matching queue. Returns the names of the filters that matched. Never
// rejects a matched spot.
func (m *Manager) OnSpot(s *spot.Spot, watchlists filter.WatchlistSource) []string {
	var matched []string
	for i := range m.predicates {
		if !m.predicates[i].Test(s, watchlists) {
			continue
		}
		stored := m.store(i, *s)
		matched = append(matched, m.queues[i].Name())
		for _, obs := range m.observers {
			obs(m.queues[i].Name(), stored)
		}
	}
	return matched
}

// store appends the spot to queue i, enforcing the global byte budget first
// and the queue's own entry budget inside append.
func (m *Manager) store(i int, s spot.Spot) StoredSpot {
	size := int64(s.WireSize())

	// Make room under the global budget before touching the target queue.
	// Each eviction locks one victim queue at a time; no two tenant locks
	// are ever held together.
	for m.totalBytes.Load()+size > m.globalMaxBytes {
		if !m.evictFromLargestQueue() {
			// Every queue is empty and the spot still doesn't fit: a
			// single spot larger than the whole budget. Admit it anyway;
			// the overrun is observable via metrics, not a drop.
			if m.oversized.Add(1) == 1 {
				m.logger.Warn("spot larger than global storage budget, admitting over budget",
					"spot_bytes", size,
					"global_max_bytes", m.globalMaxBytes)
			}
			break
		}
		m.globalEvicted.Add(1)
	}

	stored, delta := m.queues[i].append(s, int(size))
	m.totalBytes.Add(delta)
	return stored
}

// evictFromLargestQueue removes the single oldest entry from the queue with
// the most entries, ties broken by lowest index for determinism. Returns
// false when every queue is empty.
func (m *Manager) evictFromLargestQueue() bool {
	maxLen := 0
	maxIdx := -1
	for i, q := range m.queues {
		if l := q.Len(); l > maxLen {
			maxLen = l
			maxIdx = i
		}
	}
	if maxIdx < 0 {
		return false
	}

	// The queue may have shrunk since we measured; treat that as success
	// only if something actually came out.
	size, ok := m.queues[maxIdx].evictOldest()
	if !ok {
		return false
	}
	m.totalBytes.Add(int64(-size))
	return true
}

// List returns a snapshot of the named queue: spots oldest-first, latest
// sequence, overflow count.
func (m *Manager) List(name string) ([]StoredSpot, uint64, uint64, error) {
	return m.ListSince(name, 0)
}

// ListSince returns the named queue's spots with sequence > cursor. A cursor
// ahead of the queue's latest sequence yields an empty result.
func (m *Manager) ListSince(name string, cursor uint64) ([]StoredSpot, uint64, uint64, error) {
	i, ok := m.byName[name]
	if !ok {
		return nil, 0, 0, errors.WrapInvalid(errors.ErrUnknownQueue, "Manager", "ListSince", name)
	}
	spots, latest, overflow := m.queues[i].ListSince(cursor)
	return spots, latest, overflow, nil
}

// Names returns all queue names in filter order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.queues))
	for i, q := range m.queues {
		names[i] = q.Name()
	}
	return names
}

// Queues returns the tenant queues in filter order, for metrics collection.
// Callers must only use the non-mutating accessors.
func (m *Manager) Queues() []*TenantQueue {
	return m.queues
}

// TotalBytes returns the current byte total across all queues.
func (m *Manager) TotalBytes() int64 { return m.totalBytes.Load() }

// GlobalMaxBytes returns the configured global byte budget.
func (m *Manager) GlobalMaxBytes() int64 { return m.globalMaxBytes }

// GlobalEvictions returns the count of evictions forced by the global
// budget (as opposed to per-queue entry budgets).
func (m *Manager) GlobalEvictions() uint64 { return m.globalEvicted.Load() }

// OversizedAdmissions returns how many spots were admitted over the global
// budget because a single spot exceeded it entirely.
func (m *Manager) OversizedAdmissions() uint64 { return m.oversized.Load() }

func positionalName(i int) string {
	return fmt.Sprintf("filter_%d", i)
}
