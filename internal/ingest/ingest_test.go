package ingest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/gridpulse/internal/store/memory"
	"github.com/gridpulse/gridpulse/internal/topology"
	"github.com/gridpulse/gridpulse/pkg/types"
)

func TestDecodeValidMessage(t *testing.T) {
	raw := []byte(`{"zone_id":"za","timestamp":"2026-03-10T08:00:00Z","metric_type":"energy","value":412.5}`)

	r, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "za", r.ZoneID)
	assert.Equal(t, types.MetricEnergy, r.Metric)
	assert.Equal(t, 412.5, r.Value)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestDecodeRejectsBadMessages(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing zone":   `{"timestamp":"2026-03-10T08:00:00Z","metric_type":"energy","value":1}`,
		"missing time":   `{"zone_id":"za","metric_type":"energy","value":1}`,
		"unknown metric": `{"zone_id":"za","timestamp":"2026-03-10T08:00:00Z","metric_type":"noise","value":1}`,
	}
	for name, raw := range cases {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, name)
	}
}

// feed is an in-memory reader standing in for the Kafka consumer group.
type feed struct {
	msgs chan kafka.Message
}

func (f *feed) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-f.msgs:
		return m, nil
	}
}

func (f *feed) Close() error { return nil }

func testConsumer(t *testing.T, f *feed) (*Consumer, *memory.Store) {
	t.Helper()
	g, err := topology.New([]types.Zone{{ID: "za", GridPriority: 1}}, nil)
	require.NoError(t, err)
	st := memory.New()
	return &Consumer{reader: f, store: st, graph: g, logger: slog.Default()}, st
}

func TestConsumerAppendsReadings(t *testing.T) {
	f := &feed{msgs: make(chan kafka.Message, 2)}
	c, st := testConsumer(t, f)

	f.msgs <- kafka.Message{Value: []byte(`{"zone_id":"za","timestamp":"2026-03-10T08:00:00Z","metric_type":"energy","value":412.5}`)}
	f.msgs <- kafka.Message{Value: []byte(`{"zone_id":"zx","timestamp":"2026-03-10T08:00:00Z","metric_type":"energy","value":1}`)} // unknown zone, dropped

	c.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		readings, err := st.LatestReadings(context.Background(), "za", types.MetricEnergy, 10)
		return err == nil && len(readings) == 1
	}, 2*time.Second, 10*time.Millisecond)

	readings, err := st.LatestReadings(context.Background(), "za", types.MetricEnergy, 10)
	require.NoError(t, err)
	assert.Equal(t, 412.5, readings[0].Value)
}
