package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Webhook HTTP delivery defaults.
const (
	webhookTimeout = 10 * time.Second
)

// WebhookSink sends alerts as JSON POST requests to a URL. A circuit
// breaker sheds deliveries while the receiver is down so a dead endpoint
// cannot stall alert fan-out.
type WebhookSink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWebhookSink creates a new webhook alert sink.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook:" + url,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the alert as JSON to the configured webhook URL.
func (s *WebhookSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.doPost(ctx, data)
	})
	return err
}

func (s *WebhookSink) doPost(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
