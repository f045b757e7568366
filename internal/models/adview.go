package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdView records one completed ad watch and the coins it issued.
type AdView struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	CoinsEarned decimal.Decimal `json:"coins_earned"`
	AdType      string          `json:"ad_type"`
	CreatedAt   time.Time       `json:"created_at"`
}
