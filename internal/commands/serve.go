package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gridpulse/gridpulse/internal/alert"
	"github.com/gridpulse/gridpulse/internal/archiver"
	"github.com/gridpulse/gridpulse/internal/archiver/postgres"
	"github.com/gridpulse/gridpulse/internal/ingest"
	"github.com/gridpulse/gridpulse/internal/scheduler"
	"github.com/gridpulse/gridpulse/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the GridPulse server: HTTP API, scheduler, and collaborators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	p, err := loadProject(".")
	if err != nil {
		return err
	}

	logger := slog.Default()
	ctx := context.Background()

	st, err := buildStore(p.cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}

	// Alerts
	dispatcher, err := alert.NewDispatcher(p.cfg.Alerts, logger)
	if err != nil {
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}

	// Pipeline
	pl := buildPipeline(p, st, dispatcher.AlertFunc(), logger)

	// Scheduler
	var sched *scheduler.Scheduler
	if p.cfg.Scheduler != nil && p.cfg.Scheduler.Enabled {
		interval := parseDuration(p.cfg.Scheduler.Interval, 5*time.Minute)
		sched = scheduler.New(st, pl, interval, logger)
		sched.Start(ctx)
	}

	// Reading feed consumer
	var consumer *ingest.Consumer
	if p.cfg.Ingest != nil && p.cfg.Ingest.Enabled {
		consumer = ingest.NewConsumer(*p.cfg.Ingest, st, p.graph, logger)
		consumer.Start(ctx)
	}

	// Archiver
	var arc *archiver.Archiver
	var pg *postgres.Store
	if p.cfg.Archiver != nil && p.cfg.Archiver.Enabled {
		pg, err = postgres.New(ctx, p.cfg.Archiver.DSN)
		if err != nil {
			return fmt.Errorf("connecting to Postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("migrating Postgres: %w", err)
		}
		arc = archiver.New(st, pg, p.graph, *p.cfg.Archiver, logger)
		arc.Start(ctx)
	}

	// Server
	addr := ":3000"
	var apiKey string
	var maxBody int64
	if p.cfg.Server != nil {
		if p.cfg.Server.Addr != "" {
			addr = p.cfg.Server.Addr
		}
		apiKey = p.cfg.Server.APIKey
		maxBody = p.cfg.Server.MaxRequestBody
	}
	srv := server.New(addr, apiKey, maxBody, st, pl, p.graph)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if sched != nil {
			sched.Stop(shutdownCtx)
		}
		if consumer != nil {
			consumer.Stop(shutdownCtx)
		}
		if arc != nil {
			arc.Stop(shutdownCtx)
		}
		if pg != nil {
			pg.Close()
		}
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		_ = st.Stop(shutdownCtx)
		color.Green("Server stopped gracefully")
		return nil
	}
}
