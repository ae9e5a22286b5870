package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// FileSink appends alerts to a JSON-lines audit file. The file is reopened
// per write so external rotation of the log is safe.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a file alert sink, verifying the path is writable.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert log %s: %w", path, err)
	}
	_ = f.Close()

	return &FileSink{path: path}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send appends one alert as a JSON line.
func (s *FileSink) Send(ctx context.Context, alert types.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert log for zone %s: %w", alert.ZoneID, err)
	}

	if err := json.NewEncoder(f).Encode(alert); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing alert %s: %w", alert.AlertID, err)
	}
	return f.Close()
}
