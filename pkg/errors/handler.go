package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// ErrorHandler turns errors into JSON responses. In debug mode stack
// traces and the text of unclassified errors are exposed.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes the response for err. A nil error writes nothing.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	response := h.envelope(r)
	status := StatusOf(err)

	appErr := GetAppError(err)
	if appErr == nil {
		response.Type = string(ErrorTypeInternal)
		response.Message = "An internal error occurred"
		if h.debug {
			response.Message = err.Error()
		}
		h.logger.Error("Unhandled error", append(h.requestFields(r, response, status), zap.Error(err))...)
		h.write(w, status, response)
		return
	}

	response.Type = string(appErr.Type)
	response.Message = appErr.Message
	response.Code = appErr.Code
	response.Retryable = appErr.Retryable
	if len(appErr.Details) > 0 || (h.debug && appErr.StackTrace != "") {
		response.Details = make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			response.Details[k] = v
		}
		if h.debug && appErr.StackTrace != "" {
			response.Details["stack_trace"] = appErr.StackTrace
		}
	}
	if appErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}

	h.log(r, appErr, response, status)
	h.write(w, status, response)
}

// HandleStatus answers with a bare status, for failures raised by the
// router itself such as unknown routes.
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := h.envelope(r)
	response.Type = string(typeForStatus(status))
	response.Message = message

	h.logger.Warn("HTTP error", append(h.requestFields(r, response, status), zap.String("message", message))...)
	h.write(w, status, response)
}

// Middleware recovers panics in next and answers them as internal errors.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *ErrorHandler) envelope(r *http.Request) ErrorResponse {
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(middleware.RequestIDHeader)
	}
	var traceID string
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return ErrorResponse{Error: true, RequestID: requestID, TraceID: traceID}
}

func (h *ErrorHandler) requestFields(r *http.Request, resp ErrorResponse, status int) []zap.Field {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", resp.RequestID),
	}
	if resp.TraceID != "" {
		fields = append(fields, zap.String("trace_id", resp.TraceID))
	}
	return fields
}

func (h *ErrorHandler) log(r *http.Request, err *AppError, resp ErrorResponse, status int) {
	fields := append(h.requestFields(r, resp, status), zap.String("error_type", string(err.Type)))
	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if len(err.Details) > 0 {
		fields = append(fields, zap.Any("details", err.Details))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		h.logger.Info(err.Message, fields...)
	default:
		h.logger.Warn(err.Message, fields...)
	}
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err), zap.String("type", body.Type))
	}
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return ErrorTypeValidation
	case http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case http.StatusForbidden:
		return ErrorTypeForbidden
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusMethodNotAllowed:
		return ErrorTypeMethod
	case http.StatusConflict:
		return ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return ErrorTypeTransientStore
	case http.StatusBadGateway:
		return ErrorTypeExternal
	default:
		return ErrorTypeInternal
	}
}
