package models

import "time"

// TimeRange bounds a retrieval window. Start is inclusive for callers, but the
// event store compares both ends exclusively.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End-Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// QueryRequest is the body accepted by the query endpoint.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is returned for a processed query.
type QueryResponse struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
