package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

type AuthMiddleware struct {
	authz *rbac.Service
}

func NewAuthMiddleware(authz *rbac.Service) *AuthMiddleware {
	return &AuthMiddleware{authz: authz}
}

// Authenticate resolves the bearer token to the stored user and attaches it to the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, apperrors.Unauthenticated("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			handler.RespondError(c, apperrors.Unauthenticated("invalid authorization format"))
			return
		}

		user, err := m.authz.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		c.Set(handler.ContextUser, user)
		c.Next()
	}
}

// Require rejects callers that do not meet req. It must run after Authenticate.
func (m *AuthMiddleware) Require(req rbac.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.authz.Authorize(handler.CurrentUser(c), req); err != nil {
			handler.RespondError(c, err)
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return m.Require(rbac.Roles(roles...))
}

// RequirePermission admits admins holding perm.
func (m *AuthMiddleware) RequirePermission(perm model.Permission) gin.HandlerFunc {
	return m.Require(rbac.AdminWith(perm))
}
