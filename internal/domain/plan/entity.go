// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Codes of the zero-cost plans whose subscriptions bypass payment matching.
const (
	CodeFree  = "free"
	CodeTrial = "trial"
)

type Plan struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`

	// Price in whole currency units; pending subscriptions reserve a
	// perturbed minor-unit amount derived from it.
	PriceRub     int64         `json:"price_rub" db:"price_rub"`
	DurationDays sql.NullInt32 `json:"duration_days,omitempty" db:"duration_days"`
	IsActive     bool          `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BaseAmountMinor is the unperturbed expected amount for this plan.
func (p *Plan) BaseAmountMinor() int64 {
	return p.PriceRub * 100
}

// IsFree reports whether subscriptions to this plan activate without
// payment matching.
func (p *Plan) IsFree() bool {
	return p.Code == CodeFree || p.Code == CodeTrial
}
