// Package ingest consumes normalized sensor readings from the feed topic and
// appends them to the store. Ingestion is the only writer of readings; the
// pipeline only ever reads them.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gridpulse/gridpulse/internal/metrics"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// message is the wire format on the feed topic.
type message struct {
	ZoneID     string    `json:"zone_id"`
	Timestamp  time.Time `json:"timestamp"`
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
}

// reader is the subset of kafka.Reader the consumer needs; tests substitute
// an in-memory feed.
type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads the feed topic and appends readings.
type Consumer struct {
	reader reader
	store  store.Store
	graph  *topology.Graph
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a Consumer over a consumer-group reader.
func NewConsumer(cfg types.IngestConfig, st store.Store, graph *topology.Graph, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: r, store: st, graph: graph, logger: logger}
}

// Start begins consuming until Stop or context cancellation. Malformed
// messages are logged and dropped; the feed never stops over one bad record.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Info("ingest consumer started")

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					c.logger.Info("ingest consumer stopping")
					return
				}
				c.logger.Error("reading feed message", "error", err)
				continue
			}
			if err := c.handle(ctx, msg.Value); err != nil {
				c.logger.Warn("dropping feed message", "error", err)
			}
		}
	}()
}

// Stop shuts the consumer down and closes the reader.
func (c *Consumer) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("ingest consumer stop timed out")
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Error("closing feed reader", "error", err)
	}
}

func (c *Consumer) handle(ctx context.Context, raw []byte) error {
	r, err := Decode(raw)
	if err != nil {
		return err
	}
	if _, ok := c.graph.Zone(r.ZoneID); !ok {
		return fmt.Errorf("reading for unknown zone %q", r.ZoneID)
	}
	if err := c.store.AppendReading(ctx, r); err != nil {
		return fmt.Errorf("appending reading: %w", err)
	}
	metrics.ReadingsIngested.Inc()
	return nil
}

// Decode parses one feed message into a Reading.
func Decode(raw []byte) (types.Reading, error) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.Reading{}, fmt.Errorf("decoding feed message: %w", err)
	}
	if m.ZoneID == "" {
		return types.Reading{}, errors.New("feed message missing zone_id")
	}
	if m.Timestamp.IsZero() {
		return types.Reading{}, errors.New("feed message missing timestamp")
	}
	metric := types.Metric(m.MetricType)
	if !types.ValidMetric(metric) {
		return types.Reading{}, fmt.Errorf("unknown metric_type %q", m.MetricType)
	}
	return types.Reading{
		ZoneID:    m.ZoneID,
		Timestamp: m.Timestamp,
		Metric:    metric,
		Value:     m.Value,
	}, nil
}
