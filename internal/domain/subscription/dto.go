// internal/domain/subscription/dto.go
package subscription

import "github.com/google/uuid"

type CreatePendingRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	PlanCode string    `json:"plan_code" binding:"required"`
}

type CreateFreeActiveRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	PlanCode string    `json:"plan_code" binding:"required"`
}

type TransitionRequest struct {
	NewStatus      Status     `json:"new_status" binding:"required"`
	MatchedEventID *uuid.UUID `json:"matched_event_id,omitempty"`
}

type ListFilters struct {
	UserID   *uuid.UUID `form:"user_id"`
	Statuses []Status   `form:"status"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

type ListResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Total         int64          `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
}
