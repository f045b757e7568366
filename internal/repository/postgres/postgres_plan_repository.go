package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/models"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
)

type PostgresPlanRepository struct {
	db *sql.DB
}

func NewPostgresPlanRepository(db *sql.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db}
}

func (r *PostgresPlanRepository) GetByType(ctx context.Context, planType string) (*models.SubscriptionPlan, error) {
	query := `SELECT plan_type, price, duration_days FROM subscription_plans WHERE plan_type = $1`
	var plan models.SubscriptionPlan
	err := r.db.QueryRowContext(ctx, query, planType).Scan(&plan.PlanType, &plan.Price, &plan.DurationDays)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *PostgresPlanRepository) GetPrice(ctx context.Context, planType string) (decimal.Decimal, error) {
	var price decimal.Decimal
	query := `SELECT price FROM subscription_plans WHERE plan_type = $1`
	err := r.db.QueryRowContext(ctx, query, planType).Scan(&price)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, pkgerrors.ErrPlanNotFound
	}
	return price, err
}
