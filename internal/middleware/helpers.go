// internal/middleware/helpers.go
package middleware

import (
	"subgate-service/internal/domain/capability"

	"github.com/gin-gonic/gin"
)

// MustGetCapability gets the acting capability from context or panics.
// Only reachable after Auth(), where the capability is always set.
func MustGetCapability(c *gin.Context) capability.Capability {
	cap, exists := GetCapability(c)
	if !exists {
		panic("capability not found in context")
	}
	return cap
}

// IsAdminReader checks if the caller acts as the audited admin capability
func IsAdminReader(c *gin.Context) bool {
	cap, ok := GetCapability(c)
	return ok && cap == capability.AdminReader
}
