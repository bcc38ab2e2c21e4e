package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes storage state as Prometheus metrics. It reads only the
// Manager's non-mutating accessors at scrape time, so scrapes never contend
// with ingestion beyond each queue's shared lock.
type Collector struct {
	manager *Manager

	storedSpots     *prometheus.Desc
	storedBytes     *prometheus.Desc
	overflowTotal   *prometheus.Desc
	maxKeptEntries  *prometheus.Desc
	totalBytes      *prometheus.Desc
	globalMaxBytes  *prometheus.Desc
	globalEvictions *prometheus.Desc
	oversizedAdmits *prometheus.Desc
}

// NewCollector creates a collector for the manager.
func NewCollector(manager *Manager) *Collector {
	return &Collector{
		manager: manager,
		storedSpots: prometheus.NewDesc(
			"spotstream_filter_stored_spots",
			"Number of spots currently stored per filter",
			[]string{"filter"}, nil),
		storedBytes: prometheus.NewDesc(
			"spotstream_filter_stored_bytes",
			"Bytes of stored spots per filter",
			[]string{"filter"}, nil),
		overflowTotal: prometheus.NewDesc(
			"spotstream_filter_overflow_total",
			"Count of evicted spots per filter",
			[]string{"filter"}, nil),
		maxKeptEntries: prometheus.NewDesc(
			"spotstream_filter_max_kept_entries",
			"Configured max entries per filter",
			[]string{"filter"}, nil),
		totalBytes: prometheus.NewDesc(
			"spotstream_storage_total_bytes",
			"Total bytes across all filter queues",
			nil, nil),
		globalMaxBytes: prometheus.NewDesc(
			"spotstream_storage_global_max_bytes",
			"Configured global storage byte budget",
			nil, nil),
		globalEvictions: prometheus.NewDesc(
			"spotstream_storage_global_evictions_total",
			"Count of evictions forced by the global byte budget",
			nil, nil),
		oversizedAdmits: prometheus.NewDesc(
			"spotstream_storage_oversized_admissions_total",
			"Spots admitted over the global budget because one spot exceeded it",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storedSpots
	ch <- c.storedBytes
	ch <- c.overflowTotal
	ch <- c.maxKeptEntries
	ch <- c.totalBytes
	ch <- c.globalMaxBytes
	ch <- c.globalEvictions
	ch <- c.oversizedAdmits
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, q := range c.manager.Queues() {
		name := q.Name()
		ch <- prometheus.MustNewConstMetric(c.storedSpots,
			prometheus.GaugeValue, float64(q.Len()), name)
		ch <- prometheus.MustNewConstMetric(c.storedBytes,
			prometheus.GaugeValue, float64(q.SizeBytes()), name)
		ch <- prometheus.MustNewConstMetric(c.overflowTotal,
			prometheus.CounterValue, float64(q.OverflowCount()), name)
		ch <- prometheus.MustNewConstMetric(c.maxKeptEntries,
			prometheus.GaugeValue, float64(q.MaxEntries()), name)
	}

	ch <- prometheus.MustNewConstMetric(c.totalBytes,
		prometheus.GaugeValue, float64(c.manager.TotalBytes()))
	ch <- prometheus.MustNewConstMetric(c.globalMaxBytes,
		prometheus.GaugeValue, float64(c.manager.GlobalMaxBytes()))
	ch <- prometheus.MustNewConstMetric(c.globalEvictions,
		prometheus.CounterValue, float64(c.manager.GlobalEvictions()))
	ch <- prometheus.MustNewConstMetric(c.oversizedAdmits,
		prometheus.CounterValue, float64(c.manager.OversizedAdmissions()))
}
