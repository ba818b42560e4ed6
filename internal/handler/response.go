package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transitdemand/internal/repository"
	"transitdemand/internal/service"
	"transitdemand/internal/spawn"
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
	case errors.Is(err, service.ErrInvalidPassengerID),
		errors.Is(err, service.ErrInvalidSpawnScope),
		errors.Is(err, service.ErrInvalidTimeWindow),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRadius),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest

	// Expected race outcomes and in-progress windows - Conflict
	case errors.Is(err, repository.ErrAlreadyClaimed),
		errors.Is(err, repository.ErrNotOnboard),
		errors.Is(err, service.ErrSpawnWindowLocked):
		return http.StatusConflict

	// Config problems - the request was well formed but the scope cannot spawn
	case errors.Is(err, spawn.ErrMissingBaseRate),
		errors.Is(err, spawn.ErrNegativeMultiplier):
		return http.StatusUnprocessableEntity

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
