package summarizer

import (
	"strings"
	"testing"
)

func TestFallbackListsTopThree(t *testing.T) {
	events := sampleEvents(5)
	events[0].Description = "first"
	events[3].Description = "fourth"
	text := Fallback(events, "what broke")

	if !strings.Contains(text, "Query: what broke") {
		t.Fatalf("expected query echo: %s", text)
	}
	if !strings.Contains(text, "Found 5 correlated events") {
		t.Fatalf("expected event count: %s", text)
	}
	if !strings.Contains(text, "1. first (Confidence: 90.0%)") {
		t.Fatalf("expected first event line: %s", text)
	}
	if strings.Contains(text, "fourth") {
		t.Fatalf("only the first three events should be listed")
	}
	if strings.Count(text, "Action: ") != 3 {
		t.Fatalf("expected three action lines: %s", text)
	}
	if !strings.HasSuffix(text, ClosingRecommendation) {
		t.Fatalf("expected closing recommendation")
	}
}

func TestFallbackEmpty(t *testing.T) {
	text := Fallback(nil, "anything")
	if !strings.Contains(text, "Found 0 correlated events") {
		t.Fatalf("expected zero count: %s", text)
	}
	if strings.Contains(text, "Top Correlations") {
		t.Fatalf("no correlation list expected for empty input")
	}
	if Fallback(nil, "anything") != text {
		t.Fatalf("fallback must be deterministic")
	}
}

func TestLocalAndExternal(t *testing.T) {
	if s := External("x"); s.Source != SourceExternal || s.Text != "x" {
		t.Fatalf("unexpected external summary: %+v", s)
	}
	if s := Local(nil, "q"); s.Source != SourceFallback || s.Text != Fallback(nil, "q") {
		t.Fatalf("unexpected local summary: %+v", s)
	}
}
