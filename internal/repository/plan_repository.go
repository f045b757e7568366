package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/models"
)

type PlanRepository interface {
	GetByType(ctx context.Context, planType string) (*models.SubscriptionPlan, error)
	GetPrice(ctx context.Context, planType string) (decimal.Decimal, error)
}
