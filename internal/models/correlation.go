package models

import "time"

// CorrelationTypeMetricAlarm labels pairings of one alarm with one telemetry sample.
const CorrelationTypeMetricAlarm = "Metric-Alarm Correlation"

// CorrelatedEvent pairs an alarm with a telemetry sample judged related to it.
type CorrelatedEvent struct {
	ID                   string          `json:"id"`
	CorrelationType      string          `json:"correlationType"`
	ConfidenceScore      float64         `json:"confidenceScore"`
	Description          string          `json:"description"`
	CorrelationTimestamp time.Time       `json:"correlationTimestamp"`
	Alarm                AlarmRecord     `json:"alarm"`
	Telemetry            TelemetrySample `json:"telemetry"`
	RootCause            string          `json:"rootCause"`
	RecommendedAction    string          `json:"recommendedAction,omitempty"`
}
