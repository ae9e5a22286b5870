// Package metrics exposes pipeline counters via Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_cycles_total",
		Help: "Processing cycles started.",
	})
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridpulse_cycle_duration_seconds",
		Help:    "Wall-clock duration of a full processing cycle.",
		Buckets: prometheus.DefBuckets,
	})
	ZoneFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_zone_failures_total",
		Help: "Zones that failed their per-zone stage.",
	})
	ZonesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_zones_skipped_total",
		Help: "Zones skipped because the cycle budget ran out.",
	})
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_alerts_created_total",
		Help: "Alerts created, by kind.",
	}, []string{"kind"})
	AlertsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_alerts_dispatched_total",
		Help: "Alerts successfully delivered to at least one sink.",
	})
	AlertsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_alerts_failed_total",
		Help: "Alert deliveries that failed on every sink.",
	})
	AnomaliesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_anomalies_flagged_total",
		Help: "Consumption records flagged by the anomaly detector.",
	})
	ForecastModels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridpulse_forecasts_total",
		Help: "Forecasts published, by model name.",
	}, []string{"model"})
	ReadingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_readings_ingested_total",
		Help: "Sensor readings accepted from the feed.",
	})
	ArchiveBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridpulse_archive_batches_total",
		Help: "Archive batches copied to cold storage.",
	})
)
