package api

import (
	"errors"
	"net/http"

	"salonbook/internal/access"
	"salonbook/internal/booking"
	"salonbook/internal/catalog"
	"salonbook/internal/model"
	"salonbook/internal/slots"

	"github.com/gin-gonic/gin"
)

// HTTPError is the body of every error response.
type HTTPError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, HTTPError{Code: code, Message: message})
}

func badRequest(c *gin.Context, code, message string) {
	writeError(c, http.StatusBadRequest, code, message)
}

func unauthorized(c *gin.Context, code, message string) {
	writeError(c, http.StatusUnauthorized, code, message)
}

func internal(c *gin.Context, code, message string) {
	writeError(c, http.StatusInternalServerError, code, message)
}

// statusFor maps booking flow errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, slots.ErrSlotConflict),
		errors.Is(err, slots.ErrInsufficientTrailingCapacity):
		return http.StatusConflict
	case errors.Is(err, slots.ErrSlotNotFound),
		errors.Is(err, slots.ErrDurationUnset),
		errors.Is(err, booking.ErrDateNotSelectable),
		errors.Is(err, booking.ErrNothingSelected),
		errors.Is(err, catalog.ErrUnknownService),
		model.IsValidationError(err):
		return http.StatusBadRequest
	case access.IsAccessDenied(err):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeFlowError renders err with its machine code. Unknown errors are not echoed.
func writeFlowError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		internal(c, "internal_error", "Something went wrong. Please try again.")
		return
	}
	code := booking.ErrorCode(err)
	if access.IsAccessDenied(err) {
		code = "access_denied"
	}
	writeError(c, status, code, err.Error())
}
