// Watcher is the media-intelligence sync worker.
//
// It periodically pulls mentions of monitored people and channels from the
// configured providers and merges them into each activation's feed.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	_ "modernc.org/sqlite"

	"github.com/radarhq/mediasync/internal/logger"
	"github.com/radarhq/mediasync/internal/migrations"
	"github.com/radarhq/mediasync/internal/sqlite"
	"github.com/radarhq/mediasync/internal/worker"
)

type config struct {
	Database      string        `env:"DATABASE, required"`
	SyncInterval  time.Duration `env:"SYNC_INTERVAL, default=5m"`
	LookbackHours int           `env:"LOOKBACK_HOURS, default=24"`
	PageLimit     int           `env:"PAGE_LIMIT, default=100"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	if err := runWatcher(ctx, cfg); err != nil && ctx.Err() == nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runWatcher(ctx context.Context, cfg config) error {
	slog.Info("running", "interval", cfg.SyncInterval, "lookback_hours", cfg.LookbackHours)

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	repo := sqlite.New(dbx)

	sources := buildSources()
	if len(sources) == 0 {
		slog.Warn("no provider adapters configured; cycles will be empty")
	}

	orch, err := worker.New(worker.Config{
		Interval:      cfg.SyncInterval,
		LookbackHours: cfg.LookbackHours,
		PageLimit:     cfg.PageLimit,
	}, repo, repo, repo, sources)
	if err != nil {
		return fmt.Errorf("error building orchestrator: %s", err)
	}

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt))
	{
		loopCtx, loopCancel := context.WithCancel(ctx)
		g.Add(func() error {
			return orch.Run(loopCtx)
		}, func(error) {
			loopCancel()
		})
	}

	return g.Run()
}
