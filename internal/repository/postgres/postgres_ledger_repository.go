package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/infrastructure/observability"
	"github.com/studyhive/coin-ledger/internal/models"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

const (
	ensureWalletQuery = `INSERT INTO wallets (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`

	insertTransactionQuery = `INSERT INTO transactions (id, user_id, type, amount, description, reference_id) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	insertDonationQuery = `INSERT INTO donations (id, donor_user_id, amount, message, is_anonymous) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`

	insertAdViewQuery = `INSERT INTO ad_views (id, user_id, coins_earned, ad_type) VALUES ($1, $2, $3, $4) RETURNING created_at`

	insertSubscriptionQuery = `INSERT INTO subscriptions (id, user_id, plan_type, payment_amount, payment_status, starts_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`
)

// lifetimeColumn maps a ledger type to the wallet counter it grows.
func lifetimeColumn(t models.TransactionType) string {
	switch t {
	case models.TypeSpend:
		return "total_spent"
	case models.TypeWithdraw:
		return "total_withdrawn"
	default:
		return "total_earned"
	}
}

func updateWalletQuery(t models.TransactionType) string {
	col := lifetimeColumn(t)
	return fmt.Sprintf(`UPDATE wallets SET balance = balance + $1, %s = %s + $2, updated_at = NOW() WHERE user_id = $3 AND balance + $1 >= 0 RETURNING balance`, col, col)
}

func (r *PostgresLedgerRepository) Apply(ctx context.Context, entry *models.Transaction) (decimal.Decimal, error) {
	return r.apply(ctx, "Apply", entry, nil)
}

func (r *PostgresLedgerRepository) ApplyWithDonation(ctx context.Context, entry *models.Transaction, donation *models.Donation) (decimal.Decimal, error) {
	return r.apply(ctx, "ApplyWithDonation", entry, func(tx *sql.Tx) error {
		if donation.ID == uuid.Nil {
			donation.ID = uuid.New()
		}
		var message sql.NullString
		if donation.Message != "" {
			message = sql.NullString{String: donation.Message, Valid: true}
		}
		return tx.QueryRowContext(ctx, insertDonationQuery,
			donation.ID, donation.DonorUserID, donation.Amount, message, donation.IsAnonymous,
		).Scan(&donation.CreatedAt)
	})
}

func (r *PostgresLedgerRepository) ApplyWithAdView(ctx context.Context, entry *models.Transaction, view *models.AdView) (decimal.Decimal, error) {
	return r.apply(ctx, "ApplyWithAdView", entry, func(tx *sql.Tx) error {
		if view.ID == uuid.Nil {
			view.ID = uuid.New()
		}
		return tx.QueryRowContext(ctx, insertAdViewQuery,
			view.ID, view.UserID, view.CoinsEarned, view.AdType,
		).Scan(&view.CreatedAt)
	})
}

func (r *PostgresLedgerRepository) ApplyWithSubscription(ctx context.Context, entry *models.Transaction, sub *models.Subscription) (decimal.Decimal, error) {
	return r.apply(ctx, "ApplyWithSubscription", entry, func(tx *sql.Tx) error {
		if sub.ID == uuid.Nil {
			sub.ID = uuid.New()
		}
		return tx.QueryRowContext(ctx, insertSubscriptionQuery,
			sub.ID, sub.UserID, sub.PlanType, sub.PaymentAmount, sub.PaymentStatus, sub.StartsAt, sub.ExpiresAt,
		).Scan(&sub.CreatedAt)
	})
}

// apply runs the conditional wallet update, the transaction insert and any
// flow-specific insert in one database transaction. Either everything
// commits or nothing does.
func (r *PostgresLedgerRepository) apply(ctx context.Context, method string, entry *models.Transaction, extra func(*sql.Tx) error) (decimal.Decimal, error) {
	var err error
	tracer := otel.Tracer("ledger-repository")
	ctx, span := tracer.Start(ctx, method)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if entry == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to apply ledger entry", "method", method, "error", err)
		return decimal.Zero, err
	}
	if !entry.Type.Valid() {
		err = pkgerrors.ErrInvalidTransactionType
		slog.Error("invalid transaction type", "method", method, "type", entry.Type, "error", err)
		return decimal.Zero, err
	}
	if !entry.Amount.IsPositive() {
		err = pkgerrors.ErrInvalidAmount
		slog.Error("amount must be positive", "method", method, "amount", entry.Amount, "error", err)
		return decimal.Zero, err
	}

	span.SetAttributes(
		attribute.String("user_id", entry.UserID.String()),
		attribute.String("type", string(entry.Type)),
		attribute.String("amount", entry.Amount.String()),
	)

	delta := entry.Amount
	if !entry.Type.IsCredit() {
		delta = entry.Amount.Neg()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", method, "error", err)
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Wallets are created lazily with a zero balance; a debit against a
	// fresh wallet then fails the balance condition below.
	if _, err = dbTx.ExecContext(ctx, ensureWalletQuery, uuid.New(), entry.UserID); err != nil {
		slog.Error("failed to ensure wallet", "method", method, "user_id", entry.UserID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	var newBalance decimal.Decimal
	err = dbTx.QueryRowContext(ctx, updateWalletQuery(entry.Type), delta, entry.Amount, entry.UserID).Scan(&newBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrInsufficientBalance
		slog.Warn("debit rejected", "method", method, "user_id", entry.UserID, "amount", entry.Amount)
		return decimal.Zero, err
	}
	if err != nil {
		slog.Error("failed to update wallet", "method", method, "user_id", entry.UserID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to update wallet: %w", err)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	var referenceID interface{}
	if entry.ReferenceID != nil {
		referenceID = *entry.ReferenceID
	}
	err = dbTx.QueryRowContext(ctx, insertTransactionQuery,
		entry.ID, entry.UserID, entry.Type, entry.Amount, entry.Description, referenceID,
	).Scan(&entry.CreatedAt)
	if err != nil {
		slog.Error("failed to insert transaction", "method", method, "user_id", entry.UserID, "type", entry.Type, "error", err)
		return decimal.Zero, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if extra != nil {
		if err = extra(dbTx); err != nil {
			slog.Error("failed to insert flow record", "method", method, "user_id", entry.UserID, "error", err)
			return decimal.Zero, fmt.Errorf("failed to insert flow record: %w", err)
		}
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit ledger entry", "method", method, "error", err)
		return decimal.Zero, fmt.Errorf("failed to commit ledger entry: %w", err)
	}

	observability.LedgerEntries.WithLabelValues(string(entry.Type)).Inc()
	slog.Info("ledger entry applied", "method", method, "id", entry.ID, "user_id", entry.UserID, "type", entry.Type, "amount", entry.Amount, "balance", newBalance)
	return newBalance, nil
}
