// internal/handlers/notice/notice_handler.go
package notice

import (
	"net/http"
	"strconv"

	"subgate-service/internal/pkg/response"
	"subgate-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
)

const defaultClaimLimit = 50

// NoticeHandler hands pending one-shot notices to an external reminder
// sender. A claim flips the notified flag in the same statement that
// returns the rows, so each notice is handed out exactly once.
type NoticeHandler struct {
	subscriptions *postgres.SubscriptionRepository
}

func NewNoticeHandler(subscriptions *postgres.SubscriptionRepository) *NoticeHandler {
	return &NoticeHandler{
		subscriptions: subscriptions,
	}
}

// ClaimOverdue claims subscriptions owing an overdue-payment notice
func (h *NoticeHandler) ClaimOverdue(c *gin.Context) {
	subs, err := h.subscriptions.ClaimOverdueNotices(c.Request.Context(), claimLimit(c))
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "overdue notices claimed", subs)
}

// ClaimExpired claims subscriptions owing an expiry notice
func (h *NoticeHandler) ClaimExpired(c *gin.Context) {
	subs, err := h.subscriptions.ClaimExpiredNotices(c.Request.Context(), claimLimit(c))
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "expiry notices claimed", subs)
}

func claimLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", ""))
	if err != nil || limit <= 0 || limit > 500 {
		return defaultClaimLimit
	}
	return limit
}
