package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/dkeye/shoproom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return stdhttp.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return stdhttp.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrAmountExceedsRefundable):
		return stdhttp.StatusUnprocessableEntity, "amount_exceeds_refundable"
	case errors.Is(err, domain.ErrNotFound):
		return stdhttp.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPersistence):
		return stdhttp.StatusServiceUnavailable, "persistence"
	default:
		return stdhttp.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	code, kind := statusOf(err)
	if code >= stdhttp.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": kind, "message": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "bad_payload", "message": err.Error()})
}
