// internal/handlers/event/event_handler.go
package event

import (
	"database/sql"
	"net/http"
	"time"

	"subgate-service/internal/domain/payment"
	"subgate-service/internal/pkg/response"
	"subgate-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EventHandler struct {
	events *postgres.PaymentEventRepository
}

func NewEventHandler(events *postgres.PaymentEventRepository) *EventHandler {
	return &EventHandler{
		events: events,
	}
}

type ingestRequest struct {
	Source      string                 `json:"source" binding:"required"`
	ExternalID  string                 `json:"external_id"`
	AmountMinor int64                  `json:"amount_minor" binding:"required,gt=0"`
	Payload     map[string]interface{} `json:"payload"`
	ReceivedAt  *time.Time             `json:"received_at"`
}

// Ingest records an inbound payment notification. Redelivering the same
// (source, external_id) pair returns the original event.
func (h *EventHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	ev := &payment.Event{
		Source:      req.Source,
		AmountMinor: req.AmountMinor,
		Payload:     req.Payload,
		ReceivedAt:  time.Now().UTC(),
	}
	if req.ExternalID != "" {
		ev.ExternalID = sql.NullString{String: req.ExternalID, Valid: true}
	}
	if req.ReceivedAt != nil {
		ev.ReceivedAt = *req.ReceivedAt
	}

	stored, err := h.events.Ingest(c.Request.Context(), ev)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "payment event recorded", stored)
}

// Match activates the pending subscription carrying the event's amount
func (h *EventHandler) Match(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid event ID", err)
		return
	}

	subscriptionID, err := uuid.Parse(c.Query("subscription_id"))
	if err != nil {
		response.ValidationError(c, "invalid subscription ID", err)
		return
	}

	result, err := h.events.MatchToSubscription(c.Request.Context(), eventID, subscriptionID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payment matched", result)
}

// GetByExternalID retrieves a payment event by its source reference, so
// a redelivered notification can be traced to the original event
func (h *EventHandler) GetByExternalID(c *gin.Context) {
	source := c.Query("source")
	externalID := c.Query("external_id")
	if source == "" || externalID == "" {
		response.ValidationError(c, "source and external_id are required", nil)
		return
	}

	ev, err := h.events.FindBySourceExternalID(c.Request.Context(), source, externalID)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payment event retrieved", ev)
}

// Get retrieves a payment event by ID
func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "invalid event ID", err)
		return
	}

	ev, err := h.events.FindByID(c.Request.Context(), id)
	if err != nil {
		response.DomainError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "payment event retrieved", ev)
}
