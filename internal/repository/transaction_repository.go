package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/studyhive/coin-ledger/internal/models"
)

type TransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}
