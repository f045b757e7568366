package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/studyhive/coin-ledger/internal/models"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
)

type PostgresProfileRepository struct {
	db *sql.DB
}

func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}
	if profile.Email == "" || profile.PasswordHash == "" {
		return fmt.Errorf("email and password are required")
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.Role == "" {
		profile.Role = models.RoleStudent
	}

	query := `INSERT INTO profiles (id, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, profile.ID, profile.Email, profile.PasswordHash, profile.Role).Scan(&profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM profiles WHERE id = $1`
	var profile models.Profile
	err := r.db.QueryRowContext(ctx, query, id).Scan(&profile.ID, &profile.Email, &profile.PasswordHash, &profile.Role, &profile.CreatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *PostgresProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}

	query := `SELECT id, email, password_hash, role, created_at FROM profiles WHERE email = $1`
	var profile models.Profile
	err := r.db.QueryRowContext(ctx, query, email).Scan(&profile.ID, &profile.Email, &profile.PasswordHash, &profile.Role, &profile.CreatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &profile, nil
}
