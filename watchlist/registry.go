// Package watchlist caches externally maintained callsign lists and keeps
// them fresh. A Registry owns one Cache per distinct resource identifier,
// deduplicating resources shared by multiple filters, and drives periodic
// refresh in the background. Predicate evaluation reads the caches without
// ever blocking on a fetch: I/O happens first, then the result is installed
// under a brief lock.
package watchlist

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/filter"
	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/pkg/retry"
)

// DefaultSweepInterval is the refresh sweep cadence when no resource has a
// non-zero interval.
const DefaultSweepInterval = time.Minute

// registryMetrics holds Prometheus instruments for watchlist refresh.
type registryMetrics struct {
	members       *prometheus.GaugeVec
	fetchSuccess  *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	lastSuccessTS *prometheus.GaugeVec
}

func newRegistryMetrics(registry *metric.MetricsRegistry) *registryMetrics {
	if registry == nil {
		return nil
	}

	m := &registryMetrics{
		members: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spotstream",
			Subsystem: "watchlist",
			Name:      "members",
			Help:      "Current number of callsigns in a watchlist cache",
		}, []string{"resource"}),
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "watchlist",
			Name:      "fetch_success_total",
			Help:      "Successful watchlist fetches",
		}, []string{"resource"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "watchlist",
			Name:      "fetch_failures_total",
			Help:      "Failed watchlist fetches",
		}, []string{"resource"}),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spotstream",
			Subsystem: "watchlist",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch per resource",
		}, []string{"resource"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"members":                        m.members,
		"fetch_success_total":            m.fetchSuccess,
		"fetch_failures_total":           m.fetchFailures,
		"last_success_timestamp_seconds": m.lastSuccessTS,
	} {
		if err := registry.Register("watchlist", name, collector); err != nil {
			return nil
		}
	}

	return m
}

// Registry owns every watchlist cache in the process and refreshes them.
type Registry struct {
	fetcher    Fetcher
	logger     *slog.Logger
	caches     map[string]*Cache
	order      []string // sorted resource ids, for deterministic iteration
	sweep      time.Duration
	fetchRetry retry.Config
	metrics    *registryMetrics
}

// NewRegistry builds a registry from the full predicate set. Predicates
// referencing the same resource share one cache, refreshed at the shortest
// interval configured among them.
func NewRegistry(
	predicates []filter.Predicate,
	fetcher Fetcher,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	intervals := make(map[string]time.Duration)
	for i := range predicates {
		ref := predicates[i].Watchlist
		if ref == nil {
			continue
		}
		current, seen := intervals[ref.Resource]
		if !seen || shorter(ref.RefreshInterval, current) {
			intervals[ref.Resource] = ref.RefreshInterval
		}
	}

	caches := make(map[string]*Cache, len(intervals))
	order := make([]string, 0, len(intervals))
	sweepInterval := time.Duration(0)
	for resource, interval := range intervals {
		caches[resource] = NewCache(resource, interval)
		order = append(order, resource)
		if interval > 0 && (sweepInterval == 0 || interval < sweepInterval) {
			sweepInterval = interval
		}
	}
	sort.Strings(order)
	if sweepInterval == 0 {
		sweepInterval = DefaultSweepInterval
	}

	return &Registry{
		fetcher: fetcher,
		logger:  logger.With("component", "watchlist"),
		caches:  caches,
		order:   order,
		sweep:   sweepInterval,
		fetchRetry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
			AddJitter:    true,
		},
		metrics: newRegistryMetrics(metricsRegistry),
	}
}

// Contains implements filter.WatchlistSource.
func (r *Registry) Contains(resource, callsign string) bool {
	cache, ok := r.caches[resource]
	if !ok {
		return false
	}
	return cache.Contains(callsign)
}

// Cache returns the cache for a resource, or nil if the resource is unknown.
func (r *Registry) Cache(resource string) *Cache {
	return r.caches[resource]
}

// Resources returns the deduplicated resource identifiers, sorted.
func (r *Registry) Resources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SweepInterval returns the background refresh cadence: the shortest
// non-zero interval across all resources, or DefaultSweepInterval.
func (r *Registry) SweepInterval() time.Duration {
	return r.sweep
}

// RefreshAll fetches every cache that is due at the given time. Idempotent
// and safe to call repeatedly; a failed fetch logs, leaves the cache at its
// previous value, and schedules the next attempt one interval out.
func (r *Registry) RefreshAll(ctx context.Context, now time.Time) {
	for _, resource := range r.order {
		cache := r.caches[resource]
		if !cache.DueForRefresh(now) {
			continue
		}
		r.refresh(ctx, cache, now)
	}
}

// refresh fetches one resource, retrying transient failures a few times
// within the sweep before recording the attempt as failed and waiting for
// the next interval.
func (r *Registry) refresh(ctx context.Context, cache *Cache, now time.Time) {
	content, err := retry.DoWithResult(ctx, r.fetchRetry, func() (string, error) {
		content, err := r.fetcher.Fetch(ctx, cache.Resource())
		if err != nil && errors.IsInvalid(err) {
			return "", retry.NonRetryable(err)
		}
		return content, err
	})
	if err != nil {
		cache.recordFailure(now)
		if r.metrics != nil {
			r.metrics.fetchFailures.WithLabelValues(cache.Resource()).Inc()
		}
		r.logger.Warn("watchlist fetch failed, keeping previous members",
			"resource", cache.Resource(),
			"members", cache.MemberCount(),
			"class", errors.Classify(err).String(),
			"error", err)
		return
	}

	callsigns := ParseNotes(content)
	cache.install(callsigns, now)
	if r.metrics != nil {
		r.metrics.fetchSuccess.WithLabelValues(cache.Resource()).Inc()
		r.metrics.members.WithLabelValues(cache.Resource()).Set(float64(len(callsigns)))
		r.metrics.lastSuccessTS.WithLabelValues(cache.Resource()).Set(float64(now.Unix()))
	}
	r.logger.Info("watchlist refreshed",
		"resource", cache.Resource(),
		"members", len(callsigns))
}

// Run drives periodic refresh until the context is cancelled. It performs an
// immediate sweep on startup, then one per sweep interval. Missed ticks are
// harmless; staleness beyond the interval is acceptable.
func (r *Registry) Run(ctx context.Context) {
	if len(r.caches) == 0 {
		return
	}

	r.RefreshAll(ctx, time.Now())

	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.RefreshAll(ctx, now)
		}
	}
}

// shorter treats zero ("fetch once") as longer than any non-zero interval,
// so a resource shared by a fetch-once filter and a periodic one refreshes
// periodically.
func shorter(a, b time.Duration) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}
