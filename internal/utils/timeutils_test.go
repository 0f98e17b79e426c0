package utils

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestAbsWholeMinutesTruncates(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		b    time.Time
		want int64
	}{
		{"same instant", base, 0},
		{"under a minute", base.Add(59 * time.Second), 0},
		{"five minutes fifty nine", base.Add(5*time.Minute + 59*time.Second), 5},
		{"negative", base.Add(-2*time.Minute - 30*time.Second), 2},
		{"six minutes", base.Add(6 * time.Minute), 6},
		{"centuries before", time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC), int64(math.MaxInt64 / int64(time.Minute))},
		{"centuries after", time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC), int64(math.MaxInt64 / int64(time.Minute))},
	}
	for _, tc := range cases {
		if got := AbsWholeMinutes(base, tc.b); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestParseRFC3339(t *testing.T) {
	if _, err := ParseRFC3339(""); err == nil {
		t.Fatalf("expected error for empty value")
	}
	ts, err := ParseRFC3339("2024-05-01T12:00:00.123Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Nanosecond() != 123000000 {
		t.Fatalf("expected millisecond precision, got %v", ts)
	}
}

func TestUserMessage(t *testing.T) {
	base := errors.New("boom")
	err := NewAppError("store.PutAlarm", "alarm rejected", base)
	if got := UserMessage(err); got != "alarm rejected: boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected AppError to unwrap")
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected plain message %q", got)
	}
}
