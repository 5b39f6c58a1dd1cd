package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres/repository"
	"github.com/atharva0712/revision-app/internal/service"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondServiceError maps service and repository errors onto HTTP statuses.
// Internal details are logged by the caller, not leaked to the client.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrInvalidRating):
		RespondError(c, http.StatusBadRequest, "invalid_rating", err)
	case errors.Is(err, service.ErrInvalidNotification):
		RespondError(c, http.StatusBadRequest, "invalid_notification", err)
	case errors.Is(err, repository.ErrFlashcardNotFound):
		RespondError(c, http.StatusNotFound, "flashcard_not_found", errors.New("flashcard not found"))
	case errors.Is(err, repository.ErrTopicNotFound):
		RespondError(c, http.StatusNotFound, "topic_not_found", errors.New("topic not found"))
	case errors.Is(err, repository.ErrReviewStateNotFound):
		RespondError(c, http.StatusNotFound, "review_state_not_found", errors.New("flashcard has not been reviewed yet"))
	case errors.Is(err, repository.ErrOptimisticLock):
		RespondError(c, http.StatusConflict, "concurrent_update", errors.New("review state was modified concurrently, try again"))
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusGatewayTimeout, "timeout", errors.New("request timed out"))
	default:
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	}
}
