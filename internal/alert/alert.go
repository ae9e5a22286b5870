// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks. Delivery is best-effort:
// a failing sink never blocks the others, and dispatch failures never fail
// the cycle that produced the alert.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from sink configs.
func NewDispatcher(configs []types.SinkConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends an alert to all configured sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	var delivered bool
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Error("alert delivery failed",
				"sink", sink.Name(), "alert", alert.AlertID, "error", err)
			continue
		}
		delivered = true
	}
	if delivered {
		metrics.AlertsDispatched.Inc()
	} else if len(d.sinks) > 0 {
		metrics.AlertsFailed.Inc()
	}
}

// AlertFunc returns a callback suitable for the pipeline's alert hook.
func (d *Dispatcher) AlertFunc() func(types.Alert) {
	return func(a types.Alert) {
		d.Dispatch(context.Background(), a)
	}
}

func newSink(cfg types.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case types.SinkConsole:
		return NewConsoleSink(), nil
	case types.SinkWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.SinkFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
