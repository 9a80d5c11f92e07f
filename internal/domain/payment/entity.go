// internal/domain/payment/entity.go
package payment

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event is one inbound payment notification, recorded verbatim and
// append-only. (Source, ExternalID) is unique whenever the source supplies
// a message id, which is what makes redelivery safe.
type Event struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	Source      string                 `json:"source" db:"source"`
	ExternalID  sql.NullString         `json:"external_id,omitempty" db:"external_id"`
	AmountMinor int64                  `json:"amount_minor" db:"amount_minor"`
	Payload     map[string]interface{} `json:"payload" db:"payload"`
	ReceivedAt  time.Time              `json:"received_at" db:"received_at"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// RawMessage is a message as fetched from a source, before matching.
type RawMessage struct {
	Source     string                 `json:"source"`
	Text       string                 `json:"text"`
	ReceivedAt time.Time              `json:"received_at"`
	Meta       map[string]interface{} `json:"meta"`
}

// ExternalID extracts the source-side message id, if the source set one.
func (m *RawMessage) ExternalID() (string, bool) {
	switch v := m.Meta["id"].(type) {
	case string:
		return v, v != ""
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}

// Match is a successfully parsed payment amount in a raw message.
type Match struct {
	Source      string     `json:"source"`
	AmountMinor int64      `json:"amount_minor"`
	ReceivedAt  time.Time  `json:"received_at"`
	Raw         RawMessage `json:"raw"`
}
