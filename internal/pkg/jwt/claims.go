// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a capability token. A token binds a service identity
// to exactly one capability; issuance is the only place a grant is decided.
type Claims struct {
	IdentityID   int64  `json:"identity_id"`
	IdentityName string `json:"identity_name"`
	Capability   string `json:"capability"`
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}
