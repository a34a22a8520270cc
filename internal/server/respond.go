package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripledger/tripledger/internal/middleware"
	"github.com/tripledger/tripledger/internal/service"
)

// respondError maps service error kinds onto HTTP statuses with a uniform
// {"error": ...} envelope. Consistency faults log the diagnostic but keep
// the response body generic.
func respondError(c *gin.Context, err error) {
	var (
		validation  *service.ValidationError
		notFound    *service.NotFoundError
		conversion  *service.ConversionError
		consistency *service.ConsistencyError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &conversion):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": conversion.Error()})
	case errors.As(err, &consistency):
		slog.Error("Ledger consistency fault", "error", err, "request_id", middleware.GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to compute balances"})
	default:
		slog.Error("Request failed", "error", err, "request_id", middleware.GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondBadBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
