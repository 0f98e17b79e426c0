package summarizer

import (
	"fmt"
	"strings"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// FallbackTopN bounds how many correlations the fallback text lists.
const FallbackTopN = 3

// ClosingRecommendation ends every fallback answer.
const ClosingRecommendation = "Recommendation: Monitor these patterns and investigate services with high correlation confidence."

// Fallback renders a deterministic answer from events, listing the first
// FallbackTopN in their original order.
func Fallback(events []models.CorrelatedEvent, query string) string {
	var b strings.Builder
	b.WriteString("AI Analysis (offline summary - external summarizer unavailable)\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Analysis Summary:\n")
	fmt.Fprintf(&b, "Found %d correlated events in the specified time range.\n\n", len(events))

	if len(events) > 0 {
		b.WriteString("Top Correlations:\n")
		for i := 0; i < len(events) && i < FallbackTopN; i++ {
			ev := events[i]
			fmt.Fprintf(&b, "%d. %s (Confidence: %.1f%%)\n", i+1, ev.Description, ev.ConfidenceScore*100)
			if ev.RecommendedAction != "" {
				fmt.Fprintf(&b, "   Action: %s\n", ev.RecommendedAction)
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(ClosingRecommendation)
	return b.String()
}
