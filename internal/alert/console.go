package alert

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct{}

// NewConsoleSink creates a new console alert sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert to the terminal with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Severity {
	case types.TierEmergency:
		prefix = color.RedString("[EMERGENCY]")
	case types.TierAlert:
		prefix = color.RedString("[ALERT]")
	case types.TierWatch:
		prefix = color.YellowString("[WATCH]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	fmt.Printf("%s [%s] %s\n", prefix, alert.ZoneID, alert.Summary)
	return nil
}
