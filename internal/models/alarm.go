package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord marks telemetry or alarm input missing a required field.
var ErrInvalidRecord = errors.New("invalid record")

// Alarm severities emitted by the upstream alarm sources. Other values are accepted verbatim.
const (
	SeverityCritical = "CRITICAL"
	SeverityWarning  = "WARNING"
)

// AlarmRecord is a threshold-breach notification for a service/metric pair.
type AlarmRecord struct {
	ID          string    `json:"id"`
	AlarmName   string    `json:"alarmName"`
	ServiceName string    `json:"serviceName"`
	MetricType  string    `json:"metricType"`
	Severity    string    `json:"severity"`
	State       string    `json:"state,omitempty"`
	Threshold   float64   `json:"threshold"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
	Region      string    `json:"region,omitempty"`
}

// Validate reports the first missing required field.
func (a AlarmRecord) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: alarm id is required", ErrInvalidRecord)
	case a.ServiceName == "":
		return fmt.Errorf("%w: alarm %s: serviceName is required", ErrInvalidRecord, a.ID)
	case a.MetricType == "":
		return fmt.Errorf("%w: alarm %s: metricType is required", ErrInvalidRecord, a.ID)
	case a.Severity == "":
		return fmt.Errorf("%w: alarm %s: severity is required", ErrInvalidRecord, a.ID)
	case a.Timestamp.IsZero():
		return fmt.Errorf("%w: alarm %s: timestamp is required", ErrInvalidRecord, a.ID)
	}
	return nil
}
