package handlers

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/history"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

// apiError maps a service error onto the API error it should surface as, or
// nil when the error is unexpected.
func apiError(err error, resource string) *errors.APIError {
	var apiErr *errors.APIError
	switch {
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.Is(err, gorm.ErrRecordNotFound),
		stderrors.Is(err, engagement.ErrTargetNotFound):
		return errors.NotFound(resource)
	case stderrors.Is(err, engagement.ErrInvalidKind),
		stderrors.Is(err, engagement.ErrSelfSubscription),
		stderrors.Is(err, engagement.ErrInvalidParent),
		stderrors.Is(err, engagement.ErrNoViewerIdentity):
		return errors.BadRequest(err.Error())
	case stderrors.Is(err, engagement.ErrSubscribersOnly),
		stderrors.Is(err, engagement.ErrNotOwner):
		return errors.Forbidden(err.Error())
	case stderrors.Is(err, auth.ErrUserExists),
		stderrors.Is(err, auth.ErrUsernameExists):
		return errors.AlreadyExists("user").WithDetails(err.Error())
	case stderrors.Is(err, auth.ErrInvalidCredentials),
		stderrors.Is(err, auth.ErrInvalidToken),
		stderrors.Is(err, auth.ErrTokenReused):
		return errors.Unauthorized(err.Error())
	case stderrors.Is(err, auth.ErrInvalidResetToken),
		stderrors.Is(err, auth.ErrSamePassword):
		return errors.BadRequest(err.Error())
	case stderrors.Is(err, auth.ErrUserNotFound):
		return errors.NotFound("user")
	case stderrors.Is(err, history.ErrContention):
		return errors.Conflict(err.Error())
	case stderrors.Is(err, storage.ErrUnavailable):
		return errors.ServiceUnavailable("storage")
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.AlreadyExists(resource)
	}
	return nil
}

// respondServiceError renders err, logging and counting anything unexpected
// as a 500 without exposing its text.
func respondServiceError(c *gin.Context, err error, resource string) {
	if apiErr := apiError(err, resource); apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}
	metrics.Get().ErrorsTotal.WithLabelValues("internal", c.FullPath()).Inc()
	util.RespondInternalError(c, "failed to process "+resource, err)
}
