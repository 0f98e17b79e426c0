// Package notifier delivers correlation alerts to external channels.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// Sender is an external notification channel.
type Sender interface {
	// Name identifies the sender in logs and metrics (e.g. "log", "webhook").
	Name() string
	// Send delivers one correlation alert.
	Send(ctx context.Context, event models.CorrelatedEvent) error
}

// RenderMessage renders the human-readable alert body for event.
func RenderMessage(event models.CorrelatedEvent) string {
	var b strings.Builder
	b.WriteString("RATIP Correlation Alert\n\n")
	fmt.Fprintf(&b, "Type: %s\n", event.CorrelationType)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", event.ConfidenceScore*100)
	fmt.Fprintf(&b, "Description: %s\n\n", event.Description)

	b.WriteString("Alarm Details:\n")
	fmt.Fprintf(&b, "  - Name: %s\n", event.Alarm.AlarmName)
	fmt.Fprintf(&b, "  - Service: %s\n", event.Alarm.ServiceName)
	fmt.Fprintf(&b, "  - Severity: %s\n", event.Alarm.Severity)

	b.WriteString("\nTelemetry Context:\n")
	fmt.Fprintf(&b, "  - Metric: %s\n", event.Telemetry.MetricType)
	fmt.Fprintf(&b, "  - Value: %.2f\n", event.Telemetry.Value)

	if event.RecommendedAction != "" {
		b.WriteString("\nRecommended Action:\n")
		fmt.Fprintf(&b, "  %s\n", event.RecommendedAction)
	}
	return b.String()
}
