package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/models"
)

// LedgerRepository is the only sanctioned way to change a wallet balance.
// Every Apply* call performs the conditional balance update and the
// transaction-log insert in a single database transaction, so the wallet
// and the log can never disagree and a debit can never push the balance
// below zero.
type LedgerRepository interface {
	Apply(ctx context.Context, entry *models.Transaction) (decimal.Decimal, error)
	ApplyWithDonation(ctx context.Context, entry *models.Transaction, donation *models.Donation) (decimal.Decimal, error)
	ApplyWithAdView(ctx context.Context, entry *models.Transaction, view *models.AdView) (decimal.Decimal, error)
	ApplyWithSubscription(ctx context.Context, entry *models.Transaction, sub *models.Subscription) (decimal.Decimal, error)
}

type WalletRepository interface {
	// GetByUserID returns the user's wallet, creating an empty one on
	// first access.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}
