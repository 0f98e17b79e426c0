package models

import (
	"fmt"
	"time"
)

// TelemetrySample is a single metric observation for a service.
type TelemetrySample struct {
	ID          string    `json:"id"`
	ServiceName string    `json:"serviceName"`
	MetricType  string    `json:"metricType"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
	Region      string    `json:"region,omitempty"`
	Environment string    `json:"environment,omitempty"`
}

// Validate reports the first missing required field.
func (t TelemetrySample) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: telemetry id is required", ErrInvalidRecord)
	case t.ServiceName == "":
		return fmt.Errorf("%w: telemetry %s: serviceName is required", ErrInvalidRecord, t.ID)
	case t.MetricType == "":
		return fmt.Errorf("%w: telemetry %s: metricType is required", ErrInvalidRecord, t.ID)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: telemetry %s: timestamp is required", ErrInvalidRecord, t.ID)
	}
	return nil
}
