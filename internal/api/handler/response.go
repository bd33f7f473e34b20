package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/service"
)

// errorStatus maps service errors onto an HTTP status and a client message.
// notFound is the message used for service.ErrNotFound.
func errorStatus(err error, notFound string) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoPhotos):
		return http.StatusBadRequest, "Please select at least one photo"
	case errors.Is(err, service.ErrInvalidContentType):
		return http.StatusBadRequest, "Content type must be panel or diary"
	case errors.Is(err, service.ErrInvalidUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNoValidPhotos):
		return http.StatusNotFound, "No valid photos found"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusUnauthorized, "User not authorized"
	case errors.Is(err, service.ErrConfiguration):
		return http.StatusServiceUnavailable, "Caption service is not configured"
	case errors.Is(err, service.ErrGenerationFailed):
		return http.StatusBadGateway, "None of the photos could be captioned"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

// respondError writes the mapped error and logs server-side failures.
func respondError(c *gin.Context, err error, notFound string) {
	code, msg := errorStatus(err, notFound)
	if code >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).WithError(err).Error(msg)
		_ = c.Error(err)
	}
	c.JSON(code, gin.H{"error": msg})
}
