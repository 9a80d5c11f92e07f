// internal/handlers/plan/plan_handler.go
package plan

import (
	"net/http"

	"subgate-service/internal/pkg/response"
	"subgate-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	plans *postgres.PlanRepository
}

func NewPlanHandler(plans *postgres.PlanRepository) *PlanHandler {
	return &PlanHandler{
		plans: plans,
	}
}

// List retrieves the plans currently on offer
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.plans.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// Get retrieves a plan by code
func (h *PlanHandler) Get(c *gin.Context) {
	p, err := h.plans.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", p)
}
