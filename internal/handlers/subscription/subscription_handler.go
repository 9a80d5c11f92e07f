// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"
	"strconv"

	subdomain "subgate-service/internal/domain/subscription"
	"subgate-service/internal/middleware"
	"subgate-service/internal/pkg/response"
	service "subgate-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// CreatePending creates a subscription awaiting payment
func (h *SubscriptionHandler) CreatePending(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	var req subdomain.CreatePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.CreatePending(c.Request.Context(), cap, req.UserID, req.PlanCode)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "pending subscription created", result)
}

// CreateFreeActive creates a directly active free/trial subscription
func (h *SubscriptionHandler) CreateFreeActive(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	var req subdomain.CreateFreeActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.CreateFreeActive(c.Request.Context(), cap, req.UserID, req.PlanCode)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription activated", result)
}

// Transition moves a subscription along one permitted edge
func (h *SubscriptionHandler) Transition(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	var req subdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.Transition(c.Request.Context(), cap, id, req.NewStatus, req.MatchedEventID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription transitioned", result)
}

// Cancel cancels the caller's own still-pending subscription
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}

	result, err := h.subscriptionService.CancelOwnPending(c.Request.Context(), id, userID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription canceled", result)
}

// Get retrieves a subscription by ID
func (h *SubscriptionHandler) Get(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	result, err := h.subscriptionService.FindByID(c.Request.Context(), cap, id)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", result)
}

// PendingByAmount resolves which pending subscription reserves a
// fingerprint amount, for manual payment reconciliation
func (h *SubscriptionHandler) PendingByAmount(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	amount, err := strconv.ParseInt(c.Query("amount_minor"), 10, 64)
	if err != nil || amount <= 0 {
		response.ValidationError(c, "invalid amount_minor", err)
		return
	}

	result, err := h.subscriptionService.FindPendingByAmount(c.Request.Context(), cap, amount)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "pending subscription resolved", result)
}

// List retrieves subscriptions with filters
func (h *SubscriptionHandler) List(c *gin.Context) {
	cap := middleware.MustGetCapability(c)

	var filters subdomain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	result, err := h.subscriptionService.List(c.Request.Context(), cap, &filters)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", result)
}
