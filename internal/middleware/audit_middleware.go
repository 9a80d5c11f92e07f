// internal/middleware/audit_middleware.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuditMiddleware logs every request made under the admin capability.
// Admin access is an exception path and each use must leave a trace.
func AuditMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdminReader(c) {
			name, _ := GetIdentityName(c)
			logger.Warn("admin capability used",
				zap.String("identity", name),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
		}
		c.Next()
	}
}
