package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Subscription struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	PlanType      string          `json:"plan_type"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentStatus string          `json:"payment_status"`
	StartsAt      time.Time       `json:"starts_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
)

// SubscriptionPlan is a purchasable premium tier.
type SubscriptionPlan struct {
	PlanType     string          `json:"plan_type"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
}
