package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"magadrive/internal/repository"
	"magadrive/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrMissingIdempotencyKey),
		errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidOrigin),
		errors.Is(err, service.ErrInvalidDestination):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrStatusConflict):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
