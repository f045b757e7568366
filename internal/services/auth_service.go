package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/studyhive/coin-ledger/internal/infrastructure/auth"
	"github.com/studyhive/coin-ledger/internal/infrastructure/redis"
	"github.com/studyhive/coin-ledger/internal/models"
	"github.com/studyhive/coin-ledger/internal/repository"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, email, password, role string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type authService struct {
	profileRepo repository.ProfileRepository
	redisClient redis.RedisClient
	jwtSecret   string
}

func NewAuthService(profileRepo repository.ProfileRepository, redisClient redis.RedisClient, jwtSecret string) *authService {
	return &authService{
		profileRepo: profileRepo,
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
	}
}

func (s *authService) Register(ctx context.Context, email, password, role string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if email == "" || password == "" {
		span.SetStatus(codes.Error, "empty email or password")
		return "", pkgerrors.ErrInvalidInput
	}

	existing, err := s.profileRepo.GetByEmail(ctx, email)
	if existing != nil {
		span.SetStatus(codes.Error, "email already registered")
		slog.Warn("email already registered", "email", email, "existing_id", existing.ID)
		return "", pkgerrors.ErrEmailExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile check failed")
		slog.Error("failed to check profile existence", "email", email, "error", err)
		return "", fmt.Errorf("%w: failed to check profile existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "email", email, "error", err)
		return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	profile := &models.Profile{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile creation failed")
		slog.Error("failed to create profile", "email", email, "error", err)
		return "", fmt.Errorf("%w: failed to create profile", pkgerrors.ErrInternal)
	}

	slog.Info("profile registered", "user_id", profile.ID, "email", email, "role", profile.Role)
	return profile.ID.String(), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	profile, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to login", "email", email, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "email", email)
		return "", pkgerrors.ErrInvalidCredentials
	}

	tokenString, err := auth.IssueToken(profile.ID, profile.Role, s.jwtSecret)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%s:token", profile.ID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "user_id", profile.ID, "error", err)
	}

	slog.Info("user logged in", "email", email, "user_id", profile.ID)
	return tokenString, nil
}
