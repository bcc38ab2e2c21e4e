// Package main implements the spotstream entry point. Spotstream connects
// to a reverse beacon network telnet feed, parses skimmer spots, runs them
// through configured filters, and keeps the matches in bounded per-filter
// storage behind an HTTP retrieval API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/spotstream/config"
	"github.com/c360/spotstream/feed"
	"github.com/c360/spotstream/filter"
	"github.com/c360/spotstream/gateway"
	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/natspub"
	"github.com/c360/spotstream/parser"
	"github.com/c360/spotstream/stats"
	"github.com/c360/spotstream/storage"
	"github.com/c360/spotstream/watchlist"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "spotstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("starting",
		"callsign", cfg.Callsign,
		"feed", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"filters", len(cfg.Filters))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runPipeline(ctx, cfg, logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	predicates, err := cfg.Predicates()
	if err != nil {
		return err
	}

	manager := storage.NewManager(storage.Config{
		GlobalMaxBytes:    int64(cfg.Storage.GlobalMaxSize),
		DefaultMaxEntries: cfg.Storage.DefaultMaxKeptEntries,
	}, predicates, logger)
	if err := registry.Register("storage", "collector", storage.NewCollector(manager)); err != nil {
		return err
	}

	watchlists := watchlist.NewRegistry(predicates,
		watchlist.NewHTTPFetcher(30*time.Second), logger, registry)

	tracker := stats.NewTracker(cfg.StatsInterval.Std(), logger, registry)

	var gatewaySrv *gateway.Server
	if cfg.HTTP.Enabled {
		gatewaySrv = gateway.NewServer(cfg.HTTP.ListenAddr, manager, registry, logger)
		manager.AddObserver(gatewaySrv.SpotObserver())
	}

	var publisher *natspub.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = natspub.NewPublisher(natspub.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger, registry)
		if err != nil {
			return err
		}
		defer publisher.Close()
		manager.AddObserver(publisher.SpotObserver())
	}

	client := feed.NewClient(feed.Config{
		Callsign:       cfg.Callsign,
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		ReadTimeout:    cfg.ReadTimeout.Std(),
		Reconnect:      cfg.Reconnect,
	}, ingestFunc(cfg, logger, tracker, manager, watchlists), logger, registry)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		watchlists.Run(ctx)
		return nil
	})
	group.Go(func() error {
		tracker.Run(ctx)
		return nil
	})
	if gatewaySrv != nil {
		group.Go(func() error { return gatewaySrv.Run(ctx) })
	}
	group.Go(func() error { return client.Run(ctx) })

	return group.Wait()
}

// ingestFunc builds the per-line pipeline: count, recognize, parse, filter,
// store. Parse failures are logged at a bounded rate so a malformed burst
// can't flood the log.
func ingestFunc(
	cfg *config.Config,
	logger *slog.Logger,
	tracker *stats.Tracker,
	manager *storage.Manager,
	watchlists filter.WatchlistSource,
) feed.LineHandler {
	parseErrLimit := rate.NewLimiter(rate.Every(10*time.Second), 5)

	return func(line string) {
		tracker.RecordLine(len(line))

		if !parser.LooksLikeSpot(line) {
			return
		}

		s, err := parser.ParseSpot(line)
		if err != nil {
			tracker.RecordParseError()
			if parseErrLimit.Allow() {
				logger.Warn("spot parse failed", "line", line, "error", err)
			}
			return
		}

		if cfg.CWOnly && !parser.IsCW(&s) {
			return
		}

		tracker.RecordSpot(&s)
		tracker.RecordMatches(manager.OnSpot(&s, watchlists))
	}
}
