package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Donation debits the donor only; coins are retired, not transferred.
type Donation struct {
	ID          uuid.UUID       `json:"id"`
	DonorUserID uuid.UUID       `json:"donor_user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Message     string          `json:"message,omitempty"`
	IsAnonymous bool            `json:"is_anonymous"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DonationStats are the aggregate numbers shown on the public donate page.
type DonationStats struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int64           `json:"count"`
}
