// errors.go defines the handler error taxonomy and maps it to HTTP responses.
package clubs

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationError is a missing or malformed request field (400)
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError is an absent entity or one the caller does not own (404)
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError is a duplicate membership or a rejected role transition (400)
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

func invalid(msg string) error  { return &ValidationError{Message: msg} }
func notFound(msg string) error { return &NotFoundError{Message: msg} }
func conflict(msg string) error { return &ConflictError{Message: msg} }

// statusFor maps err onto the response status. Anything outside the taxonomy is a
// backend failure.
func statusFor(err error) int {
	var ve *ValidationError
	var nf *NotFoundError
	var ce *ConflictError
	switch {
	case errors.As(err, &ve), errors.As(err, &ce):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg}. Backend failures keep their raw message and are
// logged with the route they came from.
func respondError(c *gin.Context, route string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "route", route, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
