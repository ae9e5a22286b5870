// Package archiver provides a background process that copies operational
// data from the primary store to Postgres for durable long-term storage.
package archiver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const (
	defaultInterval  = 5 * time.Minute
	defaultBatchSize = 500
)

// Destination defines the write interface for the archival backend. All
// writes are upserts so re-archiving the same records is harmless.
type Destination interface {
	UpsertAlert(ctx context.Context, a types.Alert) error
	UpsertEvent(ctx context.Context, ev types.ConstraintEvent) error
	UpsertRiskScore(ctx context.Context, rs types.RiskScore) error
	UpsertCycleSummary(ctx context.Context, s types.CycleSummary) error
}

// Archiver periodically copies store data to the destination.
type Archiver struct {
	source    store.Store
	dest      Destination
	graph     *topology.Graph
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a new Archiver. cfg.Interval is a duration string ("5m");
// empty or unparsable values fall back to the default.
func New(source store.Store, dest Destination, graph *topology.Graph, cfg types.ArchiverConfig, logger *slog.Logger) *Archiver {
	interval := defaultInterval
	if cfg.Interval != "" {
		if d, err := time.ParseDuration(cfg.Interval); err == nil && d > 0 {
			interval = d
		}
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source:    source,
		dest:      dest,
		graph:     graph,
		interval:  interval,
		batchSize: batch,
		logger:    logger,
	}
}

// Start begins the archiver background loop.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.loop(ctx)
	a.logger.Info("archiver started", "interval", a.interval)
}

// Stop signals the archiver to stop and waits for it to finish.
func (a *Archiver) Stop(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("archiver stopped")
}

func (a *Archiver) loop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// Run once immediately on start
	a.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Archiver) tick(ctx context.Context) {
	a.archiveCycleSummaries(ctx)
	a.archiveAlerts(ctx)
	a.archiveEvents(ctx)
	a.archiveRiskHistory(ctx)
	metrics.ArchiveBatches.Inc()
}

func (a *Archiver) archiveCycleSummaries(ctx context.Context) {
	summaries, err := a.source.ListCycleSummaries(ctx, a.batchSize)
	if err != nil {
		a.logger.Error("archiver: list cycle summaries failed", "error", err)
		return
	}
	for _, s := range summaries {
		if ctx.Err() != nil {
			return
		}
		if err := a.dest.UpsertCycleSummary(ctx, s); err != nil {
			a.logger.Error("archiver: upsert cycle summary failed", "cycle", s.CycleID, "error", err)
		}
	}
}

func (a *Archiver) archiveAlerts(ctx context.Context) {
	alerts, err := a.source.ListAlerts(ctx, store.AlertQuery{Limit: a.batchSize})
	if err != nil {
		a.logger.Error("archiver: list alerts failed", "error", err)
		return
	}
	for _, al := range alerts {
		if ctx.Err() != nil {
			return
		}
		if err := a.dest.UpsertAlert(ctx, al); err != nil {
			a.logger.Error("archiver: upsert alert failed", "alert", al.AlertID, "error", err)
		}
	}
}

func (a *Archiver) archiveEvents(ctx context.Context) {
	events, err := a.source.ListEvents(ctx, store.EventQuery{Limit: a.batchSize})
	if err != nil {
		a.logger.Error("archiver: list events failed", "error", err)
		return
	}
	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		if err := a.dest.UpsertEvent(ctx, ev); err != nil {
			a.logger.Error("archiver: upsert event failed", "event", ev.EventID, "error", err)
		}
	}
}

func (a *Archiver) archiveRiskHistory(ctx context.Context) {
	for _, zoneID := range a.graph.ZoneIDs() {
		if ctx.Err() != nil {
			return
		}
		history, err := a.source.ListRiskHistory(ctx, zoneID, a.batchSize)
		if err != nil {
			a.logger.Error("archiver: list risk history failed", "zone", zoneID, "error", err)
			continue
		}
		for _, rs := range history {
			if err := a.dest.UpsertRiskScore(ctx, rs); err != nil {
				a.logger.Error("archiver: upsert risk score failed", "zone", zoneID, "cycle", rs.CycleID, "error", err)
			}
		}
	}
}
