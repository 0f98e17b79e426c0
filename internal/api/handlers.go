package api

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/services"
)

// FromStructTelemetry maps a gRPC payload into a TelemetrySample using the
// same field names as the JSON API.
func FromStructTelemetry(in *structpb.Struct) (models.TelemetrySample, error) {
	var sample models.TelemetrySample
	if err := decodeStruct(in, &sample); err != nil {
		return models.TelemetrySample{}, err
	}
	return sample, nil
}

// FromStructAlarm maps a gRPC payload into an AlarmRecord.
func FromStructAlarm(in *structpb.Struct) (models.AlarmRecord, error) {
	var alarm models.AlarmRecord
	if err := decodeStruct(in, &alarm); err != nil {
		return models.AlarmRecord{}, err
	}
	return alarm, nil
}

// ToStructQueryResult renders a processed query for gRPC callers.
func ToStructQueryResult(res services.QueryResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"query":        res.Query,
		"response":     res.Answer,
		"timestamp":    formatTimestamp(res.Timestamp),
		"source":       string(res.Source),
		"correlations": float64(len(res.Events)),
	})
}

// ToStructEvents renders correlations as a list value.
func ToStructEvents(events []models.CorrelatedEvent) (*structpb.ListValue, error) {
	items := make([]any, 0, len(events))
	for _, ev := range events {
		m, err := toMap(ev)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return structpb.NewList(items)
}

func decodeStruct(in *structpb.Struct, out any) error {
	if in == nil {
		return fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}
