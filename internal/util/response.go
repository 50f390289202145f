package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/logger"
	"go.uber.org/zap"
)

// Envelope is the uniform body of every API response.
type Envelope struct {
	StatusCode int                `json:"statusCode"`
	Data       interface{}        `json:"data"`
	Message    string             `json:"message"`
	Success    bool               `json:"success"`
	Errors     []*errors.APIError `json:"errors,omitempty"`
	Meta       *Meta              `json:"meta,omitempty"`
}

// Meta carries list metadata.
type Meta struct {
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Respond writes a successful envelope.
func Respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// RespondOK is Respond with 200.
func RespondOK(c *gin.Context, data interface{}, message string) {
	Respond(c, http.StatusOK, data, message)
}

// RespondCreated is Respond with 201.
func RespondCreated(c *gin.Context, data interface{}, message string) {
	Respond(c, http.StatusCreated, data, message)
}

// RespondPaginated writes a list envelope with meta.pagination.
func RespondPaginated(c *gin.Context, data interface{}, p *Pagination, message string) {
	c.JSON(http.StatusOK, Envelope{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
		Success:    true,
		Meta:       &Meta{Pagination: p},
	})
}

// RespondWithAPIError sends a structured API error inside the envelope and
// aborts the handler chain.
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.String("details", apiErr.Details),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", apiErr.Status),
		)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error",
			zap.String("code", string(apiErr.Code)),
			zap.String("message", apiErr.Message),
			zap.String("field", apiErr.Field),
			zap.String("path", c.Request.URL.Path),
		)
	}

	c.AbortWithStatusJSON(apiErr.Status, Envelope{
		StatusCode: apiErr.Status,
		Data:       nil,
		Message:    apiErr.Message,
		Success:    false,
		Errors:     []*errors.APIError{apiErr},
	})
}

// RespondValidationErrors sends several field errors in one envelope.
func RespondValidationErrors(c *gin.Context, errs []*errors.APIError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		StatusCode: http.StatusBadRequest,
		Message:    "validation failed",
		Success:    false,
		Errors:     errs,
	})
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	msg := "user not authenticated"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Unauthorized(msg))
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, resource string) {
	RespondWithAPIError(c, errors.NotFound(resource))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message ...string) {
	msg := "forbidden"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Forbidden(msg))
}

// RespondInternalError sends a 500 response. The cause is logged, never echoed.
func RespondInternalError(c *gin.Context, message string, cause error) {
	apiErr := errors.InternalError(message)
	if cause != nil {
		logger.Log.Error(message, zap.Error(cause), zap.String("path", c.Request.URL.Path))
	}
	RespondWithAPIError(c, apiErr)
}

// RespondConflict sends a 409 Conflict response
func RespondConflict(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.Conflict(message))
}
