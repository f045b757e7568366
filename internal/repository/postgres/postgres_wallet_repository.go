package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/studyhive/coin-ledger/internal/models"
)

type PostgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

const selectWalletQuery = `SELECT id, user_id, balance, total_earned, total_spent, total_withdrawn, created_at, updated_at FROM wallets WHERE user_id = $1`

const createWalletQuery = `INSERT INTO wallets (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`

func (r *PostgresWalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := r.scanWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	// First access: create an empty wallet and re-read it.
	if _, err := r.db.ExecContext(ctx, createWalletQuery, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	wallet, err = r.scanWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (r *PostgresWalletRepository) scanWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.QueryRowContext(ctx, selectWalletQuery, userID).Scan(
		&wallet.ID,
		&wallet.UserID,
		&wallet.Balance,
		&wallet.TotalEarned,
		&wallet.TotalSpent,
		&wallet.TotalWithdrawn,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
