package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/validator"
)

const (
	ContextUser      = "current_user"
	ContextRequestID = "request_id"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func NewErrorResponse(detail string) *ErrorResponse {
	return &ErrorResponse{Detail: detail}
}

// RespondError writes err with its mapped status and aborts the chain.
// Causes of internal and upstream errors are logged, never returned.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}

	status := appErr.StatusCode()
	if status >= 500 {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, NewErrorResponse(appErr.Message))
}

// BindJSON decodes the body into v and reports binding failures as 400.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		RespondError(c, apperrors.Validation(validator.Describe(err)))
		return false
	}
	return true
}

// CurrentUser returns the user resolved by the auth middleware.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ContextUser); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

// MustUser is CurrentUser for routes behind authentication. It writes a 401
// and returns false when no user is attached.
func MustUser(c *gin.Context) (*model.User, bool) {
	user := CurrentUser(c)
	if user == nil {
		RespondError(c, apperrors.Unauthenticated("not authenticated"))
		return nil, false
	}
	return user, true
}
