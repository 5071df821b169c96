package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/auth"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextUser     = "user"
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

type AuthMiddleware struct {
	BaseHandler
	authenticator *auth.Authenticator
}

func NewAuthMiddleware(authenticator *auth.Authenticator, logger utils.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		BaseHandler:   NewBaseHandler(logger),
		authenticator: authenticator,
	}
}

// Authenticate resolves the bearer token to an active user or aborts with 401
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))

		user, err := m.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if services.ErrorKind(err) == services.CodeAuthFailure {
				m.RespondWithError(c, http.StatusUnauthorized, services.PublicMessage(err))
				return
			}
			m.handleServiceError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUserRole, user.Role)
		c.Next()
	}
}

// RequireRole admits the listed roles. ADMIN is always admitted.
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := m.currentUser(c)
		if user == nil {
			return
		}

		if user.Role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		m.RespondWithError(c, http.StatusForbidden, "insufficient permissions")
	}
}

// CurrentUser returns the authenticated user of the request
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}
