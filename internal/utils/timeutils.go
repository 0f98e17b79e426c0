package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// AbsWholeMinutes returns |b-a| in whole minutes, truncating any partial minute.
// 5m59s yields 5. Spans beyond the time.Duration range saturate to the maximum.
func AbsWholeMinutes(a, b time.Time) int64 {
	if b.Before(a) {
		a, b = b, a
	}
	return int64(b.Sub(a) / time.Minute)
}
