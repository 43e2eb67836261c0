package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuspass/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	fail(c, http.StatusBadRequest, apperr.KindBadRequest, err)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	fail(c, http.StatusUnauthorized, apperr.KindUnauthorized, err)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	fail(c, http.StatusForbidden, apperr.KindForbidden, err)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	fail(c, http.StatusNotFound, apperr.KindNotFound, err)
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Error: err, Code: string(apperr.KindUnavailable), Retryable: true})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	fail(c, http.StatusInternalServerError, apperr.KindInternal, err)
}

// Error sends the status mapped from the error's kind. Unclassified errors become 500
// without leaking their text.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := Body{Error: apperr.Message(err), Code: string(kind)}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Retryable = e.Retryable()
	}
	c.JSON(StatusFor(kind), body)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicateRegistration, apperr.KindCapacityExceeded, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindRegistrationClosed, apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotEligible, apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, kind apperr.Kind, msg string) {
	c.JSON(status, Body{Error: msg, Code: string(kind)})
}
