// Package stats tracks feed throughput: what arrived on the wire, what
// parsed, and the shape of the traffic. Counters are updated on the hot
// ingestion path, so everything here is either atomic or a Prometheus
// instrument; the periodic log summary reads a consistent snapshot.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/spot"
)

// DefaultSummaryInterval is how often the tracker logs a summary when the
// configuration does not say otherwise.
const DefaultSummaryInterval = 30 * time.Second

type trackerMetrics struct {
	lines       prometheus.Counter
	bytes       prometheus.Counter
	spots       *prometheus.CounterVec
	parseErrors prometheus.Counter
	matched     *prometheus.CounterVec
	snr         prometheus.Histogram
	wpm         prometheus.Histogram
}

func newTrackerMetrics(registry *metric.MetricsRegistry) *trackerMetrics {
	if registry == nil {
		return nil
	}

	m := &trackerMetrics{
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "lines_total",
			Help:      "Lines received from the feed, spot or not",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "bytes_total",
			Help:      "Bytes received from the feed",
		}),
		spots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "spots_total",
			Help:      "Parsed spots by band, mode and type",
		}, []string{"band", "mode", "type"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "parse_errors_total",
			Help:      "Lines that looked like spots but failed to parse",
		}),
		matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "filter",
			Name:      "matched_total",
			Help:      "Spots matched per filter",
		}, []string{"filter"}),
		snr: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "snr_db",
			Help:      "Signal-to-noise ratio of parsed spots",
			Buckets:   prometheus.LinearBuckets(0, 5, 12),
		}),
		wpm: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "wpm",
			Help:      "Keying speed of parsed CW spots",
			Buckets:   prometheus.LinearBuckets(10, 5, 10),
		}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"lines_total":        m.lines,
		"bytes_total":        m.bytes,
		"spots_total":        m.spots,
		"parse_errors_total": m.parseErrors,
		"matched_total":      m.matched,
		"snr_db":             m.snr,
		"wpm":                m.wpm,
	} {
		if err := registry.Register("feed", name, collector); err != nil {
			return nil
		}
	}

	return m
}

// Snapshot is a point-in-time copy of the tracker's counters. Rate is
// spots per second since the previous summary window opened.
type Snapshot struct {
	Lines       uint64
	Bytes       uint64
	Spots       uint64
	CWSpots     uint64
	ParseErrors uint64
	Matched     uint64
	Rate        float64
}

// Tracker accumulates feed statistics. Safe for concurrent use.
type Tracker struct {
	logger   *slog.Logger
	interval time.Duration
	metrics  *trackerMetrics

	mu          sync.Mutex
	lines       uint64
	bytes       uint64
	spots       uint64
	cwSpots     uint64
	parseErrors uint64
	matched     uint64
	windowStart time.Time
	windowSpots uint64
}

// NewTracker creates a tracker that logs a summary every interval. A zero
// interval falls back to DefaultSummaryInterval.
func NewTracker(interval time.Duration, logger *slog.Logger, registry *metric.MetricsRegistry) *Tracker {
	if interval <= 0 {
		interval = DefaultSummaryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:      logger.With("component", "stats"),
		interval:    interval,
		metrics:     newTrackerMetrics(registry),
		windowStart: time.Now(),
	}
}

// RecordLine counts one raw feed line of the given length, spot or not.
func (t *Tracker) RecordLine(length int) {
	t.mu.Lock()
	t.lines++
	t.bytes += uint64(length)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.lines.Inc()
		t.metrics.bytes.Add(float64(length))
	}
}

// RecordSpot counts one successfully parsed spot.
func (t *Tracker) RecordSpot(s *spot.Spot) {
	t.mu.Lock()
	t.spots++
	t.windowSpots++
	if s.Mode == spot.ModeCW {
		t.cwSpots++
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.spots.WithLabelValues(s.Band(), string(s.Mode), string(s.Type)).Inc()
		t.metrics.snr.Observe(float64(s.SNRdB))
		if s.Mode == spot.ModeCW {
			t.metrics.wpm.Observe(float64(s.WPM))
		}
	}
}

// RecordParseError counts a line that looked like a spot but didn't parse.
func (t *Tracker) RecordParseError() {
	t.mu.Lock()
	t.parseErrors++
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.parseErrors.Inc()
	}
}

// RecordMatches counts a spot's filter matches.
func (t *Tracker) RecordMatches(filters []string) {
	if len(filters) == 0 {
		return
	}

	t.mu.Lock()
	t.matched += uint64(len(filters))
	t.mu.Unlock()

	if t.metrics != nil {
		for _, name := range filters {
			t.metrics.matched.WithLabelValues(name).Inc()
		}
	}
}

// Snapshot returns the current totals and closes the rate window: the next
// snapshot's rate covers only spots seen after this call.
func (t *Tracker) Snapshot() Snapshot {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Lines:       t.lines,
		Bytes:       t.bytes,
		Spots:       t.spots,
		CWSpots:     t.cwSpots,
		ParseErrors: t.parseErrors,
		Matched:     t.matched,
	}
	if elapsed := now.Sub(t.windowStart).Seconds(); elapsed > 0 {
		snap.Rate = float64(t.windowSpots) / elapsed
	}
	t.windowStart = now
	t.windowSpots = 0
	return snap
}

// Run logs a summary every interval until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := t.Snapshot()
			t.logger.Info("feed summary",
				"lines", snap.Lines,
				"bytes", snap.Bytes,
				"spots", snap.Spots,
				"cw_spots", snap.CWSpots,
				"parse_errors", snap.ParseErrors,
				"matched", snap.Matched,
				"spots_per_sec", snap.Rate)
		}
	}
}
