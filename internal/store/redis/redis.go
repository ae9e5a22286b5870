// Package redis implements the Store interface using Redis/Valkey. It is the
// primary operational backend: readings live in sorted sets scored by
// timestamp, list-shaped records in trimmed indexes, and singletons as plain
// JSON keys.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Sorted-set trim limits per key. historyLimit from the config overrides the
// risk-history and alert-index caps.
const (
	readingsIndexMax = 2000
	riskHistoryMax   = 500
	cycleIndexMax    = 200
	alertIndexMax    = 1000
	closedEventsMax  = 1000

	defaultRetention = 168 * time.Hour
)

// Store implements store.Store backed by Redis/Valkey.
type Store struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration // readings older than this are dropped on append
	history   int           // risk/alert index cap override, 0 = defaults
	logger    *slog.Logger
}

// New creates a new Redis Store.
func New(cfg *types.RedisConfig, logger *slog.Logger) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := NewFromClient(client, cfg.KeyPrefix, logger)
	if cfg.RetentionTTL != "" {
		if d, err := time.ParseDuration(cfg.RetentionTTL); err == nil && d > 0 {
			s.retention = d
		}
	}
	if cfg.HistoryLimit > 0 {
		s.history = cfg.HistoryLimit
	}
	return s
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "gridpulse:"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: prefix, retention: defaultRetention, logger: logger}
}

func (s *Store) riskHistoryLimit() int {
	if s.history > 0 {
		return s.history
	}
	return riskHistoryMax
}

func (s *Store) alertIndexLimit() int {
	if s.history > 0 {
		return s.history
	}
	return alertIndexMax
}

// Start initializes the connection.
func (s *Store) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop closes the connection.
func (s *Store) Stop(_ context.Context) error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *Store) readingsKey(zoneID string, metric types.Metric) string {
	return s.prefix + "readings:" + zoneID + ":" + string(metric)
}

func (s *Store) forecastKey(zoneID string) string {
	return s.prefix + "forecast:" + zoneID
}

func (s *Store) policyStateKey(zoneID string, metric types.Metric) string {
	return s.prefix + "pstate:" + zoneID + ":" + string(metric)
}

func (s *Store) openEventKey(zoneID string, metric types.Metric) string {
	return s.prefix + "event:open:" + zoneID + ":" + string(metric)
}

func (s *Store) openEventPattern() string {
	return s.prefix + "event:open:*"
}

func (s *Store) closedEventsKey() string {
	return s.prefix + "events:closed"
}

func (s *Store) alertsKey() string {
	return s.prefix + "alerts"
}

func (s *Store) alertIndexKey() string {
	return s.prefix + "alerts:index"
}

func (s *Store) riskKey(zoneID string) string {
	return s.prefix + "risk:" + zoneID
}

func (s *Store) riskHistoryKey(zoneID string) string {
	return s.prefix + "risk:history:" + zoneID
}

func (s *Store) recommendationsKey(zoneID string) string {
	return s.prefix + "recs:" + zoneID
}

func (s *Store) cycleIndexKey() string {
	return s.prefix + "cycles"
}

func (s *Store) lockKey(key string) string {
	return s.prefix + "lock:" + key
}
