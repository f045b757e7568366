package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/studyhive/coin-ledger/internal/models"
)

type PostgresDonationRepository struct {
	db *sql.DB
}

func NewPostgresDonationRepository(db *sql.DB) *PostgresDonationRepository {
	return &PostgresDonationRepository{db: db}
}

const listDonationsQuery = `SELECT id, donor_user_id, amount, message, is_anonymous, created_at FROM donations ORDER BY created_at DESC LIMIT $1`

const donationStatsQuery = `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM donations`

func (r *PostgresDonationRepository) ListRecent(ctx context.Context, limit int) ([]models.Donation, error) {
	rows, err := r.db.QueryContext(ctx, listDonationsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	var donations []models.Donation
	for rows.Next() {
		var d models.Donation
		var message sql.NullString
		if err := rows.Scan(&d.ID, &d.DonorUserID, &d.Amount, &message, &d.IsAnonymous, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		d.Message = message.String
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

func (r *PostgresDonationRepository) Stats(ctx context.Context) (*models.DonationStats, error) {
	var stats models.DonationStats
	err := r.db.QueryRowContext(ctx, donationStatsQuery).Scan(&stats.TotalAmount, &stats.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to get donation stats: %w", err)
	}
	return &stats, nil
}
