package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/storage"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing spots rather than slowing ingestion.
const subscriberBuffer = 64

type subscriber struct {
	id     uuid.UUID
	tenant string
	ch     chan storage.StoredSpot
}

type hubMetrics struct {
	subscribers *prometheus.GaugeVec
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

func newHubMetrics(registry *metric.MetricsRegistry) *hubMetrics {
	if registry == nil {
		return nil
	}

	m := &hubMetrics{
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spotstream",
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Connected websocket subscribers per filter",
		}, []string{"filter"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "stream",
			Name:      "delivered_total",
			Help:      "Spots delivered to subscriber buffers",
		}, []string{"filter"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Spots dropped because a subscriber buffer was full",
		}, []string{"filter"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"subscribers":     m.subscribers,
		"delivered_total": m.delivered,
		"dropped_total":   m.dropped,
	} {
		if err := registry.Register("stream", name, collector); err != nil {
			return nil
		}
	}

	return m
}

// streamHub fans stored spots out to websocket subscribers, keyed by filter
// name. Publish never blocks: a full subscriber buffer drops the spot for
// that subscriber only.
type streamHub struct {
	logger  *slog.Logger
	metrics *hubMetrics

	mu   sync.RWMutex
	subs map[string]map[uuid.UUID]*subscriber
}

func newStreamHub(logger *slog.Logger, registry *metric.MetricsRegistry) *streamHub {
	return &streamHub{
		logger:  logger,
		metrics: newHubMetrics(registry),
		subs:    make(map[string]map[uuid.UUID]*subscriber),
	}
}

// publish delivers a stored spot to every subscriber of the tenant.
func (h *streamHub) publish(tenant string, stored storage.StoredSpot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[tenant] {
		select {
		case sub.ch <- stored:
			if h.metrics != nil {
				h.metrics.delivered.WithLabelValues(tenant).Inc()
			}
		default:
			if h.metrics != nil {
				h.metrics.dropped.WithLabelValues(tenant).Inc()
			}
		}
	}
}

func (h *streamHub) subscribe(tenant string) *subscriber {
	sub := &subscriber{
		id:     uuid.New(),
		tenant: tenant,
		ch:     make(chan storage.StoredSpot, subscriberBuffer),
	}

	h.mu.Lock()
	if h.subs[tenant] == nil {
		h.subs[tenant] = make(map[uuid.UUID]*subscriber)
	}
	h.subs[tenant][sub.id] = sub
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.subscribers.WithLabelValues(tenant).Inc()
	}
	h.logger.Debug("subscriber attached", "filter", tenant, "subscriber", sub.id)
	return sub
}

func (h *streamHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.subs[sub.tenant]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.subs, sub.tenant)
		}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.subscribers.WithLabelValues(sub.tenant).Dec()
	}
	h.logger.Debug("subscriber detached", "filter", sub.tenant, "subscriber", sub.id)
}
