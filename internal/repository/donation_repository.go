package repository

import (
	"context"

	"github.com/studyhive/coin-ledger/internal/models"
)

type DonationRepository interface {
	ListRecent(ctx context.Context, limit int) ([]models.Donation, error)
	Stats(ctx context.Context) (*models.DonationStats, error)
}
