package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "cms-backend/pkg/errors"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Count     *int   `json:"count,omitempty"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	RespondWithMeta(w, status, data, nil)
}

// RespondWithMeta sends a response with metadata
func RespondWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// RespondNoContent sends an empty 204 response
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ExtractRequestID extracts the request ID from the request headers
func ExtractRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Amzn-Trace-Id")
}

// DecodeJSON parses a JSON request body with a size limit. Unknown fields and
// trailing data are rejected as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError("request body too large").WithCode(pkgerrors.CodeBodyTooLarge)
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is required")
		default:
			return pkgerrors.NewValidationErrorf("invalid request body: %v", err)
		}
	}
	if decoder.More() {
		return pkgerrors.NewValidationError("request body must hold a single JSON object")
	}
	return nil
}
