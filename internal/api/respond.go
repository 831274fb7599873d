package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"chefia/internal/apperrors"
	"chefia/internal/backup"
	"chefia/internal/ingest"
	"chefia/internal/llm"
	"chefia/internal/observability"
	"chefia/internal/session"
)

// fail aborts the request with err rendered as a coded JSON error.
func (s *Server) fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	logger := observability.FromContext(c.Request.Context(), s.logger)
	if appErr.StatusCode >= 500 {
		logger.Error("request error", "code", appErr.Code, "error", err)
	} else {
		logger.Debug("request rejected", "code", appErr.Code, "error", err)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{"error": appErr})
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, session.ErrNotFound):
		return apperrors.NotFound("not found")
	case errors.Is(err, session.ErrInvalidEntry),
		errors.Is(err, llm.ErrUnknownProvider),
		errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, llm.ErrMissingKey),
		errors.Is(err, ingest.ErrMissingColumn),
		errors.Is(err, ingest.ErrUnreadable),
		errors.Is(err, backup.ErrMissingColumns):
		return apperrors.Validation(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.CodeTimeout, "the model did not answer in time")
	default:
		return apperrors.Internal(err, "internal server error")
	}
}
