package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
)

// StatusTooEarly is returned for not-eligible actions together with the
// instant they become possible.
const StatusTooEarly = http.StatusTooEarly

// JSONError is the body of every error response.
type JSONError struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request. Field names the single offending
// input; Fields carries per-field messages for validation failures.
type ErrorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Field      string            `json:"field,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	EligibleAt *time.Time        `json:"eligibleAt,omitempty"`
}

// ErrorResponse maps err to a status code and writes it as JSON. Internal
// errors are logged in full and reported with a generic message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	body := ErrorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	} else {
		body.Field = domain.ErrorField(err)
		body.EligibleAt = domain.ErrorEligibleAt(err)
	}

	logError(logger, r, err, code, domain.ErrorOp(err), status)
	writeJSON(w, status, JSONError{Error: body})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT, domain.ESTALE, domain.EALREADY:
		return http.StatusConflict // 409
	case domain.ETRANSITION:
		return http.StatusUnprocessableEntity // 422
	case domain.ENOTELIGIBLE:
		return StatusTooEarly // 425
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EUPLOAD:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Caller identity is required")
	ErrorResponse(w, r, logger, err)
}

// InvalidResponse reports a malformed request input.
func InvalidResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, field, message string) {
	ErrorResponse(w, r, logger, domain.InvalidField("", field, message))
}

// logError logs client errors at INFO and server errors at ERROR.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else {
		logger.Info("client error", attrs...)
	}
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
