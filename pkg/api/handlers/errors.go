package handlers

import (
	"errors"
	"net/http"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/moderation"
)

// Error codes returned in ErrorResponse.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidThresholds  = "invalid_thresholds"
	CodeNotFound           = "not_found"
	CodeInvalidReviewState = "invalid_review_state"
	CodeExecutionFailed    = "execution_failed"
	CodeStorageUnavailable = "storage_unavailable"
	CodeInternal           = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`

	// Decision is set when evaluation persisted a decision but its action
	// could not be executed.
	Decision *moderation.Decision `json:"decision,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleError maps the moderation error taxonomy to an HTTP status and body.
// Unknown errors become a 500 whose message does not leak internals.
func HandleError(err error) (int, *ErrorResponse) {
	var queryErr *audit.QueryError

	switch {
	case errors.Is(err, moderation.ErrInvalidThresholdOrder),
		errors.Is(err, moderation.ErrThresholdOutOfRange):
		return http.StatusBadRequest, newErrorResponse(CodeInvalidThresholds, err.Error())
	case errors.Is(err, moderation.ErrMissingReason),
		errors.Is(err, moderation.ErrInvalidEvent),
		errors.Is(err, errBadRequest),
		errors.As(err, &queryErr):
		return http.StatusBadRequest, newErrorResponse(CodeInvalidRequest, err.Error())
	case errors.Is(err, moderation.ErrNotFound):
		return http.StatusNotFound, newErrorResponse(CodeNotFound, err.Error())
	case errors.Is(err, moderation.ErrInvalidReviewState):
		return http.StatusConflict, newErrorResponse(CodeInvalidReviewState, err.Error())
	case errors.Is(err, moderation.ErrExecution):
		return http.StatusBadGateway, newErrorResponse(CodeExecutionFailed, err.Error())
	case errors.Is(err, moderation.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, newErrorResponse(CodeStorageUnavailable, "storage is temporarily unavailable")
	default:
		return http.StatusInternalServerError, newErrorResponse(CodeInternal, "An internal error occurred. Please try again later.")
	}
}

func newErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
