// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"subgate-service/internal/domain/identity"
	xerrors "subgate-service/internal/pkg/errors"
	"subgate-service/internal/pkg/response"
	"subgate-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *auth.AuthService
	rateLimiter *auth.RateLimiter
	logger      *zap.Logger
}

func NewAuthHandler(authService *auth.AuthService, rateLimiter *auth.RateLimiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Token exchanges service-identity credentials for a capability token
func (h *AuthHandler) Token(c *gin.Context) {
	var req identity.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	allowed, _, err := h.rateLimiter.CheckTokenAttempt(c.Request.Context(), c.ClientIP(), req.Name)
	if err != nil {
		h.logger.Warn("rate limit check failed, allowing request", zap.Error(err))
	} else if !allowed {
		response.DomainError(c, xerrors.ErrRateLimited)
		return
	}

	result, err := h.authService.IssueToken(c.Request.Context(), &req)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	if err := h.rateLimiter.ResetTokenAttempts(c.Request.Context(), c.ClientIP(), req.Name); err != nil {
		h.logger.Warn("failed to reset token attempts", zap.Error(err))
	}

	response.Success(c, http.StatusOK, "token issued", result)
}
