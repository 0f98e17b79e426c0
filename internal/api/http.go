package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/services"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

const (
	serviceName     = "RATIP"
	maxRequestBytes = 1 << 20
)

// QueryProcessor answers operator questions.
type QueryProcessor interface {
	Process(ctx context.Context, query string) services.QueryResult
}

// Ingestor accepts telemetry and alarms and exposes the live window.
type Ingestor interface {
	IngestTelemetry(sample models.TelemetrySample) error
	IngestAlarm(alarm models.AlarmRecord) ([]models.CorrelatedEvent, error)
	WindowSnapshot(service string) []models.TelemetrySample
}

// HTTPHandler serves the REST API.
type HTTPHandler struct {
	queries QueryProcessor
	ingest  Ingestor
	logger  *slog.Logger
	now     func() time.Time
}

// NewHTTPHandler builds the REST API with permissive CORS.
func NewHTTPHandler(queries QueryProcessor, ingest Ingestor, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HTTPHandler{queries: queries, ingest: ingest, logger: logger, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", h.handleQuery)
	mux.HandleFunc("GET /api/v1/health", h.handleHealth)
	mux.HandleFunc("POST /api/v1/telemetry", h.handleTelemetry)
	mux.HandleFunc("POST /api/v1/alarms", h.handleAlarm)
	mux.HandleFunc("GET /api/v1/window", h.handleWindow)

	return cors.AllowAll().Handler(mux)
}

func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, services.EmptyQueryMessage)
		return
	}

	h.logger.Info("received query", slog.String("query", req.Query))
	res := h.queries.Process(r.Context(), req.Query)
	switch {
	case res.Invalid:
		writeError(w, http.StatusBadRequest, res.Answer)
		return
	case res.Failed:
		writeError(w, http.StatusInternalServerError, res.Answer)
		return
	}

	writeJSON(w, http.StatusOK, models.QueryResponse{
		Query:     req.Query,
		Response:  res.Answer,
		Timestamp: formatTimestamp(h.now()),
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "UP",
		"service":   serviceName,
		"timestamp": formatTimestamp(h.now()),
	})
}

func (h *HTTPHandler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var sample models.TelemetrySample
	if err := decodeJSON(w, r, &sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ingest.IngestTelemetry(sample); err != nil {
		h.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": sample.ID, "accepted": true})
}

func (h *HTTPHandler) handleAlarm(w http.ResponseWriter, r *http.Request) {
	var alarm models.AlarmRecord
	if err := decodeJSON(w, r, &alarm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	events, err := h.ingest.IngestAlarm(alarm)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}
	if events == nil {
		events = []models.CorrelatedEvent{}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": alarm.ID, "accepted": true, "correlations": events})
}

func (h *HTTPHandler) handleWindow(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	samples := h.ingest.WindowSnapshot(service)
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "count": len(samples), "samples": samples})
}

func (h *HTTPHandler) writeIngestError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrInvalidRecord) {
		writeError(w, http.StatusBadRequest, utils.UserMessage(err))
		return
	}
	h.logger.Error("ingest failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, utils.UserMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
