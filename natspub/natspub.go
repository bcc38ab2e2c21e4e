// Package natspub publishes matched spots to NATS subjects, one subject per
// filter. It is an optional output: publish failures are counted and logged,
// never propagated back into the ingestion path.
package natspub

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/storage"
)

// DefaultSubjectPrefix is used when the configuration leaves it blank.
const DefaultSubjectPrefix = "spots.matched"

// Config holds the NATS connection parameters.
type Config struct {
	URL           string
	SubjectPrefix string
}

type publisherMetrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

func newPublisherMetrics(registry *metric.MetricsRegistry) *publisherMetrics {
	if registry == nil {
		return nil
	}

	m := &publisherMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "nats",
			Name:      "published_total",
			Help:      "Spots published to NATS per filter",
		}, []string{"filter"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "nats",
			Name:      "publish_failures_total",
			Help:      "Failed NATS publishes per filter",
		}, []string{"filter"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"published_total":        m.published,
		"publish_failures_total": m.failures,
	} {
		if err := registry.Register("natspub", name, collector); err != nil {
			return nil
		}
	}

	return m
}

// Publisher fans matched spots out to NATS.
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	logger  *slog.Logger
	metrics *publisherMetrics
}

// NewPublisher connects to the NATS server. The connection reconnects
// forever; a short initial outage only delays delivery.
func NewPublisher(cfg Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natspub")

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Publisher", "NewPublisher", "connect to "+cfg.URL)
	}

	return &Publisher{
		conn:    conn,
		prefix:  prefix,
		logger:  logger,
		metrics: newPublisherMetrics(registry),
	}, nil
}

// SpotObserver returns the storage observer that publishes each stored
// spot to "<prefix>.<filter>".
func (p *Publisher) SpotObserver() storage.Observer {
	return func(tenant string, stored storage.StoredSpot) {
		subject := p.prefix + "." + subjectToken(tenant)

		payload, err := json.Marshal(stored)
		if err != nil {
			p.logger.Error("spot marshal failed", "filter", tenant, "error", err)
			return
		}

		if err := p.conn.Publish(subject, payload); err != nil {
			if p.metrics != nil {
				p.metrics.failures.WithLabelValues(tenant).Inc()
			}
			p.logger.Warn("nats publish failed", "subject", subject, "error", err)
			return
		}
		if p.metrics != nil {
			p.metrics.published.WithLabelValues(tenant).Inc()
		}
	}
}

// Close drains the connection so buffered publishes flush before shutdown.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
		p.conn.Close()
	}
}

// subjectToken makes a filter name safe to use as a NATS subject token.
func subjectToken(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '*', '>':
			return '_'
		default:
			return r
		}
	}, name)
}
