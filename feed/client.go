// Package feed streams raw telnet lines from a reverse beacon network
// server. The client owns the full connection lifecycle: dial, login
// handshake, line streaming with a read deadline, and reconnect with
// exponential backoff.
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/spotstream/errors"
	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/pkg/retry"
)

// loginPromptMax bounds how many bytes we scan for the login prompt before
// giving up on a misbehaving server.
const loginPromptMax = 4096

// Config holds the connection parameters.
type Config struct {
	// Callsign sent in response to the server's login prompt.
	Callsign string

	// Addr is the host:port of the telnet server.
	Addr string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Reconnect re-dials after a dropped connection. When false, Run
	// returns on the first failure.
	Reconnect bool

	// OnConnect and OnDisconnect, when non-nil, are called from the
	// client's goroutine on connection state changes.
	OnConnect    func()
	OnDisconnect func(err error)
}

// LineHandler receives each line of the feed, trailing CR/LF stripped.
// Called from the client's goroutine; it must not block for long or the
// read deadline may fire.
type LineHandler func(line string)

type clientMetrics struct {
	connects    prometheus.Counter
	disconnects prometheus.Counter
	connected   prometheus.Gauge
}

func newClientMetrics(registry *metric.MetricsRegistry) *clientMetrics {
	if registry == nil {
		return nil
	}

	m := &clientMetrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "connects_total",
			Help:      "Successful feed connections including reconnects",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "disconnects_total",
			Help:      "Connections lost or closed by the server",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spotstream",
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while a feed connection is logged in and streaming",
		}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"connects_total":    m.connects,
		"disconnects_total": m.disconnects,
		"connected":         m.connected,
	} {
		if err := registry.Register("feed_client", name, collector); err != nil {
			return nil
		}
	}

	return m
}

// Client connects to the feed and hands every line to the handler.
type Client struct {
	cfg     Config
	handler LineHandler
	logger  *slog.Logger
	metrics *clientMetrics
	backoff *retry.Backoff
}

// NewClient creates a feed client. The handler must be non-nil.
func NewClient(cfg Config, handler LineHandler, logger *slog.Logger, registry *metric.MetricsRegistry) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "feed", "addr", cfg.Addr),
		metrics: newClientMetrics(registry),
		backoff: retry.NewBackoff(retry.Config{
			InitialDelay: 5 * time.Second,
			MaxDelay:     2 * time.Minute,
			Multiplier:   2,
			AddJitter:    true,
		}),
	}
}

// Run streams the feed until the context is cancelled. With Reconnect set
// it retries forever, backing off between attempts; otherwise it returns
// after the first connection ends: nil on a clean remote close, the
// connection error otherwise.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connectAndStream(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if c.metrics != nil {
			c.metrics.disconnects.Inc()
		}
		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(err)
		}
		if !c.cfg.Reconnect {
			return err
		}
		if err == nil {
			err = errors.WrapTransient(errors.ErrConnectionLost, "Client", "Run", "server closed connection")
		}

		delay := c.backoff.Next()
		c.logger.Warn("connection lost, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectAndStream runs one full connection: dial, login, then stream lines
// until EOF, a read timeout, or context cancellation. A nil return means
// the server closed the connection cleanly.
func (c *Client) connectAndStream(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return errors.WrapTransient(err, "Client", "connectAndStream", "dial")
	}
	defer conn.Close()

	// Close the connection when the context ends so the blocked read
	// returns promptly.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	if err := c.login(conn, reader); err != nil {
		return err
	}

	c.logger.Info("connected and logged in", "callsign", c.cfg.Callsign)
	if c.metrics != nil {
		c.metrics.connects.Inc()
		c.metrics.connected.Set(1)
		defer c.metrics.connected.Set(0)
	}
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}
	c.backoff.Reset()

	for {
		if c.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
				return errors.WrapTransient(err, "Client", "connectAndStream", "set read deadline")
			}
		}

		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			c.handler(trimmed)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.WrapTransient(err, "Client", "connectAndStream", "read line")
		}
	}
}

// login waits for the server's "call:" prompt, sends the callsign, then
// waits for the command prompt ('>'). The prompt has no trailing newline,
// so this reads byte-wise rather than line-wise.
func (c *Client) login(conn net.Conn, reader *bufio.Reader) error {
	if c.cfg.ConnectTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout)); err != nil {
			return errors.WrapTransient(err, "Client", "login", "set deadline")
		}
		defer conn.SetDeadline(time.Time{})
	}

	if err := c.awaitPrompt(reader, func(buf []byte, _ byte) bool {
		return len(buf) >= 5 && strings.EqualFold(string(buf[len(buf)-5:]), "call:")
	}); err != nil {
		return errors.WrapTransient(err, "Client", "login", "wait for login prompt")
	}

	if _, err := fmt.Fprintf(conn, "%s\r\n", c.cfg.Callsign); err != nil {
		return errors.WrapTransient(err, "Client", "login", "send callsign")
	}

	// e.g. "W6JSV de RELAY 08-Jan-2026 03:13Z >"
	if err := c.awaitPrompt(reader, func(_ []byte, b byte) bool {
		return b == '>'
	}); err != nil {
		return errors.WrapTransient(err, "Client", "login", "wait for command prompt")
	}

	return nil
}

// awaitPrompt consumes bytes until done reports the prompt was seen,
// bounded by loginPromptMax.
func (c *Client) awaitPrompt(reader *bufio.Reader, done func(buf []byte, last byte) bool) error {
	buf := make([]byte, 0, 256)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return err
		}
		buf = append(buf, b)
		if done(buf, b) {
			return nil
		}
		if len(buf) > loginPromptMax {
			return errors.New("no prompt found in initial data")
		}
	}
}
