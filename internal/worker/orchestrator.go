// Package worker runs the periodic synchronization loop: every tick it
// walks the active activations, pulls new mentions from each provider for
// every monitored person and linked channel, and pushes them through the
// group → merge → dedup → insert pipeline, advancing watermarks as it goes.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/radarhq/mediasync/internal/mediasync"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultLookbackHours = 24
	defaultPageLimit     = 100

	listTimeout   = 30 * time.Second
	detailTimeout = 15 * time.Second

	entityCacheSize = 512
)

type (
	// Source pairs a provider adapter with the feed source type used for
	// person mentions it returns. Channel syncs derive theirs from the
	// channel's kind instead.
	Source struct {
		Client           mediasync.ProviderClient
		PersonSourceType mediasync.SourceType
	}

	Config struct {
		// How often a sync cycle starts. A tick that arrives while a
		// cycle is still running is dropped, not queued.
		Interval time.Duration

		// How far back the first fetch for a key reaches when no
		// watermark exists yet.
		LookbackHours int

		// Max records requested per listing fetch.
		PageLimit int
	}

	Orchestrator struct {
		directory  mediasync.ActivationDirectory
		watermarks mediasync.WatermarkStore
		feed       mediasync.FeedStore
		sources    []Source

		interval      time.Duration
		lookbackHours int
		pageLimit     int

		// Person name -> provider entity id, so each tick doesn't
		// re-issue a search per monitored person.
		entityIDs *lru.Cache[string, string]

		// Guards re-entrancy: only one cycle runs at a time.
		running atomic.Bool
	}
)

func New(cfg Config, directory mediasync.ActivationDirectory, watermarks mediasync.WatermarkStore, feed mediasync.FeedStore, sources []Source) (*Orchestrator, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = defaultLookbackHours
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}

	cache, err := lru.New[string, string](entityCacheSize)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		directory:     directory,
		watermarks:    watermarks,
		feed:          feed,
		sources:       sources,
		interval:      cfg.Interval,
		lookbackHours: cfg.LookbackHours,
		pageLimit:     cfg.PageLimit,
		entityIDs:     cache,
	}, nil
}

// Run ticks immediately, then on every interval until the context is
// cancelled. The timer is just a driver: if a cycle is still running when
// the next tick fires, that tick is a no-op.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Tick(ctx)

	t := time.NewTicker(o.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			o.Tick(ctx)
		}
	}
}

// Tick runs one full cycle unless one is already in flight, in which case it
// reports false and does nothing.
func (o *Orchestrator) Tick(ctx context.Context) (CycleReport, bool) {
	if !o.running.CompareAndSwap(false, true) {
		slog.InfoContext(ctx, "sync cycle still running, dropping tick")
		return CycleReport{}, false
	}
	defer o.running.Store(false)

	return o.runCycle(ctx), true
}

func (o *Orchestrator) runCycle(ctx context.Context) CycleReport {
	started := time.Now()
	var report CycleReport

	activations, err := o.directory.ListActive(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing active activations", "error", err)
		report.Failures++
		return report
	}

	for _, activation := range activations {
		report.merge(o.syncActivation(ctx, activation))
	}

	slog.InfoContext(ctx, "sync cycle complete",
		"activations", len(activations),
		"keys", report.Keys,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"failures", report.Failures,
		"elapsed", time.Since(started),
	)

	return report
}
