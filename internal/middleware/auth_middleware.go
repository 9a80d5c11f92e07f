// internal/middleware/auth_middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/pkg/response"
	"subgate-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth is the base authentication middleware that validates capability tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		// Set identity context
		c.Set("identity_id", claims.IdentityID)
		c.Set("identity_name", claims.IdentityName)
		c.Set("jti", claims.ID)
		c.Set("capability", capability.Capability(claims.Capability))

		c.Next()
	}
}

// RequireCapability requires the caller to act as one of the given
// capabilities. MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireCapability(caps ...capability.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		acting, ok := GetCapability(c)
		if !ok {
			response.Forbidden(c, "no capability found - authentication required")
			return
		}

		for _, required := range caps {
			if acting == required {
				c.Next()
				return
			}
		}

		err := fmt.Errorf("capability %q is not one of the required %v", acting, caps)
		response.Error(c, http.StatusForbidden, "insufficient capability", err)
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback for websocket clients that cannot set headers
	token := c.Query("token")
	if token != "" {
		return token
	}

	return ""
}

// Helper function to get identity ID from context
func GetIdentityID(c *gin.Context) (int64, bool) {
	identityID, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}

	id, ok := identityID.(int64)
	return id, ok
}

// Helper function to get the acting capability from context
func GetCapability(c *gin.Context) (capability.Capability, bool) {
	v, exists := c.Get("capability")
	if !exists {
		return "", false
	}

	cap, ok := v.(capability.Capability)
	return cap, ok
}

// Helper function to get the identity name from context
func GetIdentityName(c *gin.Context) (string, bool) {
	v, exists := c.Get("identity_name")
	if !exists {
		return "", false
	}

	name, ok := v.(string)
	return name, ok
}
