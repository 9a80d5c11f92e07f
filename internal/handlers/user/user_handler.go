// internal/handlers/user/user_handler.go
package user

import (
	"database/sql"
	"net/http"

	"subgate-service/internal/pkg/response"
	"subgate-service/internal/repository/postgres"
	"subgate-service/internal/service/entitlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	users        *postgres.UserRepository
	entitlements *entitlement.EntitlementService
}

func NewUserHandler(users *postgres.UserRepository, entitlements *entitlement.EntitlementService) *UserHandler {
	return &UserHandler{
		users:        users,
		entitlements: entitlements,
	}
}

type upsertRequest struct {
	TgUserID int64  `json:"tg_user_id" binding:"required"`
	Username string `json:"username"`
}

// Upsert registers the user on first contact or refreshes the username
func (h *UserHandler) Upsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	username := sql.NullString{String: req.Username, Valid: req.Username != ""}
	u, err := h.users.UpsertByTgID(c.Request.Context(), req.TgUserID, username)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "user registered", u)
}

// Get retrieves a user by ID
func (h *UserHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}

	u, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "user retrieved", u)
}

// Entitlement reports whether the user currently holds access
func (h *UserHandler) Entitlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}

	entitled, err := h.entitlements.IsEntitled(c.Request.Context(), id)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "entitlement resolved", map[string]interface{}{
		"user_id":  id,
		"entitled": entitled,
	})
}
