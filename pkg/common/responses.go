// Package common holds the HTTP response envelope and body decoding shared
// by the REST handlers.
package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	pkgerrors "canvas-backend/pkg/errors"
)

// DefaultMaxBodyBytes caps JSON request bodies
const DefaultMaxBodyBytes = 1 << 20

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RespondJSON sends data wrapped in the response envelope
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta: &MetaInfo{
			RequestID: middleware.GetReqID(r.Context()),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// RespondText sends a raw body with the given content type
func RespondText(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// DecodeJSON parses a JSON request body of at most maxBytes. Unknown fields
// are rejected. Failures come back as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError("request body too large").WithDetail("max_bytes", maxBytes)
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is empty")
		default:
			return pkgerrors.NewValidationError("invalid request body: " + err.Error())
		}
	}
	return nil
}
