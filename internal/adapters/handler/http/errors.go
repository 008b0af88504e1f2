package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

const contextErrorCodeKey = "errorCode"

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{target: domain.ErrInvalidFrequency, status: http.StatusBadRequest, code: "invalid_frequency"},
	{target: domain.ErrInvalidCareType, status: http.StatusBadRequest, code: "invalid_care_type"},
	{target: domain.ErrInvalidDateRange, status: http.StatusBadRequest, code: "invalid_date_range"},
	{target: domain.ErrInvalidDate, status: http.StatusBadRequest, code: "invalid_date"},
	{target: domain.ErrInvalidMonth, status: http.StatusBadRequest, code: "invalid_month"},
	{target: domain.ErrReminderInvalidIDs, status: http.StatusBadRequest, code: "invalid_ids"},
	{target: domain.ErrInvalidEmail, status: http.StatusBadRequest, code: "invalid_email"},
	{target: domain.ErrPasswordTooShort, status: http.StatusBadRequest, code: "password_too_short"},
	{target: domain.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{target: domain.ErrReminderNotFound, status: http.StatusNotFound, code: "reminder_not_found"},
	{target: domain.ErrOccurrenceNotFound, status: http.StatusNotFound, code: "occurrence_not_found"},
	{target: domain.ErrDuplicateRule, status: http.StatusConflict, code: "duplicate_rule"},
	{target: domain.ErrAlreadyCompleted, status: http.StatusConflict, code: "already_completed"},
	{target: domain.ErrReminderConflict, status: http.StatusConflict, code: "version_conflict"},
	{target: domain.ErrEmailAlreadyExists, status: http.StatusConflict, code: "email_exists"},
	{target: domain.ErrFutureCompletionNotAllowed, status: http.StatusUnprocessableEntity, code: "future_completion"},
	{target: domain.ErrCompletionBeforeSchedule, status: http.StatusUnprocessableEntity, code: "completion_before_schedule"},
	{target: domain.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: "store_unavailable", retryable: true},
	{target: context.DeadlineExceeded, status: http.StatusServiceUnavailable, code: "timeout", retryable: true},
}

// respondError writes the JSON error for err. Unknown errors become a bare 500 so
// internals never leak.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}

		msg := err.Error()
		if m.status >= http.StatusInternalServerError {
			msg = "service temporarily unavailable, please retry"
		}
		c.Set(contextErrorCodeKey, m.code)
		c.JSON(m.status, errorResponse{Error: msg, Code: m.code, Retryable: m.retryable})
		return
	}

	c.Set(contextErrorCodeKey, "internal")
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"})
}

func respondBadRequest(c *gin.Context, err error) {
	c.Set(contextErrorCodeKey, "validation")
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
}

// ErrorCode returns the code respondError chose for this request, if any.
func ErrorCode(c *gin.Context) string {
	return c.GetString(contextErrorCodeKey)
}
