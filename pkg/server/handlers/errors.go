package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/server/dto"
	"github.com/soundprediction/ontoreason/pkg/triplestore"
)

// writeError writes an error response as JSON and aborts the chain.
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: code, Message: message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, triplestore.ErrInvalidTriple),
		errors.Is(err, bdi.ErrEmptyUser),
		errors.Is(err, bdi.ErrInvalidAttachment):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(c *gin.Context, code string, err error) {
	status := statusFor(err)
	if status == http.StatusBadRequest {
		code = "invalid_request"
	}
	writeError(c, status, code, err.Error())
}
