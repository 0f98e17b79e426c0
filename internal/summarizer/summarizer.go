// Package summarizer turns correlated events into a natural-language answer.
package summarizer

import (
	"context"
	"errors"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// ErrNotConfigured reports that the external summarizer has no usable credentials.
var ErrNotConfigured = errors.New("summarizer not configured")

// Summarizer answers query using events. Implementations may fail; callers are
// expected to substitute Fallback.
type Summarizer interface {
	Summarize(ctx context.Context, events []models.CorrelatedEvent, query string) (string, error)
}

// Source identifies which variant produced a Summary.
type Source string

const (
	SourceExternal Source = "external"
	SourceFallback Source = "fallback"
)

// Summary is an answer plus where it came from.
type Summary struct {
	Text   string
	Source Source
}

// External wraps an answer produced by a Summarizer.
func External(text string) Summary {
	return Summary{Text: text, Source: SourceExternal}
}

// Local wraps the deterministic fallback answer for events.
func Local(events []models.CorrelatedEvent, query string) Summary {
	return Summary{Text: Fallback(events, query), Source: SourceFallback}
}
