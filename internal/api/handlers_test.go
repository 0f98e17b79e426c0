package api

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/services"
	"github.com/ratipstack/ratip-engine/internal/summarizer"
)

func TestFromStructTelemetry(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{
		"id":          "t1",
		"serviceName": "checkout",
		"metricType":  "Latency",
		"value":       310.5,
		"timestamp":   "2024-03-01T10:00:00Z",
		"region":      "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	sample, err := FromStructTelemetry(in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if sample.ID != "t1" || sample.ServiceName != "checkout" || sample.Value != 310.5 || !sample.Timestamp.Equal(want) {
		t.Fatalf("unexpected sample: %+v", sample)
	}
}

func TestFromStructAlarmRejectsBadTimestamp(t *testing.T) {
	in, _ := structpb.NewStruct(map[string]any{"id": "a1", "timestamp": "yesterday"})
	if _, err := FromStructAlarm(in); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := FromStructAlarm(nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestToStructQueryResult(t *testing.T) {
	res := services.QueryResult{
		Query:     "last hour",
		Answer:    "all quiet",
		Source:    summarizer.SourceFallback,
		Events:    []models.CorrelatedEvent{{ID: "c1"}, {ID: "c2"}},
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	out, err := ToStructQueryResult(res)
	if err != nil {
		t.Fatalf("ToStructQueryResult: %v", err)
	}
	fields := out.GetFields()
	if fields["response"].GetStringValue() != "all quiet" || fields["source"].GetStringValue() != "fallback" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["correlations"].GetNumberValue() != 2 {
		t.Fatalf("expected 2 correlations, got %v", fields["correlations"])
	}
	if fields["timestamp"].GetStringValue() != "2024-03-01T10:00:00Z" {
		t.Fatalf("unexpected timestamp %q", fields["timestamp"].GetStringValue())
	}
}
