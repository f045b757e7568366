package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/infrastructure/kafka"
	"github.com/studyhive/coin-ledger/internal/infrastructure/redis"
	"github.com/studyhive/coin-ledger/internal/models"
	"github.com/studyhive/coin-ledger/internal/repository"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	adRewardDescription   = "Earned from watching advertisement"
	donationDescription   = "Donation to help students access free materials"
	withdrawalDescription = "Coin withdrawal"
	premiumDescription    = "Premium subscription purchase"

	ledgerTopic     = "ledger.transactions"
	maxHistoryLimit = 100

	walletCacheTTL = 5 * time.Minute
	requestKeyTTL  = 24 * time.Hour
	lockTTL        = 3 * time.Second
)

type LedgerService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, txType models.TransactionType) (decimal.Decimal, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, txType models.TransactionType) (decimal.Decimal, error)
	ClaimAdReward(ctx context.Context, userID uuid.UUID, adType, requestID string) (decimal.Decimal, error)
	Donate(ctx context.Context, donorUserID uuid.UUID, amount decimal.Decimal, message string, isAnonymous bool, requestID string) (*models.Donation, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requestID string) (decimal.Decimal, error)
	PurchasePremium(ctx context.Context, userID uuid.UUID, planType, requestID string) (*models.Subscription, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	RecentDonations(ctx context.Context, limit int) ([]models.Donation, error)
	DonationStats(ctx context.Context) (*models.DonationStats, error)
}

type ledgerService struct {
	ledgerRepo      repository.LedgerRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	donationRepo    repository.DonationRepository
	planRepo        repository.PlanRepository
	redisClient     redis.RedisClient
	kafkaProducer   kafka.KafkaProducer
	adRewardCoins   decimal.Decimal
	historyLimit    int
}

func NewLedgerService(
	ledgerRepo repository.LedgerRepository,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	donationRepo repository.DonationRepository,
	planRepo repository.PlanRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	adRewardCoins decimal.Decimal,
	historyLimit int,
) *ledgerService {
	return &ledgerService{
		ledgerRepo:      ledgerRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		donationRepo:    donationRepo,
		planRepo:        planRepo,
		redisClient:     redisClient,
		kafkaProducer:   kafkaProducer,
		adRewardCoins:   adRewardCoins,
		historyLimit:    historyLimit,
	}
}

func walletCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("wallet:%s:summary", userID)
}

func (s *ledgerService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, txType models.TransactionType) (decimal.Decimal, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Credit")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "invalid amount")
		slog.Error("invalid credit amount", "user_id", userID, "amount", amount)
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}
	if txType == "" {
		txType = models.TypeEarn
	}
	if !txType.IsCredit() {
		span.SetStatus(codes.Error, "invalid transaction type")
		slog.Error("credit called with debit type", "user_id", userID, "type", txType)
		return decimal.Zero, pkgerrors.ErrInvalidTransactionType
	}

	entry := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
	}
	newBalance, err := s.ledgerRepo.Apply(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credit failed")
		slog.Error("credit failed", "user_id", userID, "amount", amount, "error", err)
		return decimal.Zero, err
	}

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("wallet credited", "user_id", userID, "type", txType, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

func (s *ledgerService) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, txType models.TransactionType) (decimal.Decimal, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Debit")
	defer span.End()

	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "invalid amount")
		slog.Error("invalid debit amount", "user_id", userID, "amount", amount)
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}
	if txType == "" {
		txType = models.TypeSpend
	}
	if txType.IsCredit() || !txType.Valid() {
		span.SetStatus(codes.Error, "invalid transaction type")
		slog.Error("debit called with credit type", "user_id", userID, "type", txType)
		return decimal.Zero, pkgerrors.ErrInvalidTransactionType
	}

	entry := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
	}
	newBalance, err := s.ledgerRepo.Apply(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "debit failed")
		if stderrors.Is(err, pkgerrors.ErrInsufficientBalance) {
			slog.Warn("debit rejected", "user_id", userID, "amount", amount)
		} else {
			slog.Error("debit failed", "user_id", userID, "amount", amount, "error", err)
		}
		return decimal.Zero, err
	}

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("wallet debited", "user_id", userID, "type", txType, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

func (s *ledgerService) ClaimAdReward(ctx context.Context, userID uuid.UUID, adType, requestID string) (decimal.Decimal, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "ClaimAdReward")
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return decimal.Zero, pkgerrors.ErrUnauthenticated
	}
	if adType == "" {
		adType = "video"
	}

	release, err := s.beginIdempotent(ctx, span, userID, requestID)
	if err != nil {
		return decimal.Zero, err
	}

	view := &models.AdView{
		ID:          uuid.New(),
		UserID:      userID,
		CoinsEarned: s.adRewardCoins,
		AdType:      adType,
	}
	entry := &models.Transaction{
		UserID:      userID,
		Type:        models.TypeEarn,
		Amount:      s.adRewardCoins,
		Description: adRewardDescription,
		ReferenceID: &view.ID,
	}
	newBalance, err := s.ledgerRepo.ApplyWithAdView(ctx, entry, view)
	if err != nil {
		release(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "ad reward failed")
		slog.Error("ad reward failed", "user_id", userID, "request_id", requestID, "error", err)
		return decimal.Zero, err
	}
	release(false)

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("ad reward claimed", "user_id", userID, "ad_type", adType, "coins", s.adRewardCoins, "balance", newBalance)
	return newBalance, nil
}

func (s *ledgerService) Donate(ctx context.Context, donorUserID uuid.UUID, amount decimal.Decimal, message string, isAnonymous bool, requestID string) (*models.Donation, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Donate")
	defer span.End()

	if donorUserID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, pkgerrors.ErrUnauthenticated
	}
	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "invalid amount")
		slog.Error("invalid donation amount", "user_id", donorUserID, "amount", amount)
		return nil, pkgerrors.ErrInvalidAmount
	}

	release, err := s.beginIdempotent(ctx, span, donorUserID, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockWallet(ctx, span, donorUserID)
	if err != nil {
		release(true)
		return nil, err
	}
	defer unlock()

	donation := &models.Donation{
		ID:          uuid.New(),
		DonorUserID: donorUserID,
		Amount:      amount,
		Message:     message,
		IsAnonymous: isAnonymous,
	}
	entry := &models.Transaction{
		UserID:      donorUserID,
		Type:        models.TypeSpend,
		Amount:      amount,
		Description: donationDescription,
		ReferenceID: &donation.ID,
	}
	newBalance, err := s.ledgerRepo.ApplyWithDonation(ctx, entry, donation)
	if err != nil {
		release(true)
		span.RecordError(err)
		if stderrors.Is(err, pkgerrors.ErrInsufficientBalance) {
			span.SetStatus(codes.Error, "insufficient balance")
			slog.Warn("donation rejected", "user_id", donorUserID, "amount", amount)
		} else {
			span.SetStatus(codes.Error, "donation failed")
			slog.Error("donation failed", "user_id", donorUserID, "amount", amount, "error", err)
		}
		return nil, err
	}
	release(false)

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("donation recorded", "user_id", donorUserID, "donation_id", donation.ID, "amount", amount, "anonymous", isAnonymous, "balance", newBalance)
	return donation, nil
}

func (s *ledgerService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, requestID string) (decimal.Decimal, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Withdraw")
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return decimal.Zero, pkgerrors.ErrUnauthenticated
	}
	if !amount.IsPositive() {
		span.SetStatus(codes.Error, "invalid amount")
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}

	release, err := s.beginIdempotent(ctx, span, userID, requestID)
	if err != nil {
		return decimal.Zero, err
	}

	unlock, err := s.lockWallet(ctx, span, userID)
	if err != nil {
		release(true)
		return decimal.Zero, err
	}
	defer unlock()

	entry := &models.Transaction{
		UserID:      userID,
		Type:        models.TypeWithdraw,
		Amount:      amount,
		Description: withdrawalDescription,
	}
	newBalance, err := s.ledgerRepo.Apply(ctx, entry)
	if err != nil {
		release(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "withdrawal failed")
		slog.Error("withdrawal failed", "user_id", userID, "amount", amount, "error", err)
		return decimal.Zero, err
	}
	release(false)

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("withdrawal recorded", "user_id", userID, "amount", amount, "balance", newBalance)
	return newBalance, nil
}

func (s *ledgerService) PurchasePremium(ctx context.Context, userID uuid.UUID, planType, requestID string) (*models.Subscription, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "PurchasePremium")
	defer span.End()

	if userID == uuid.Nil {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, pkgerrors.ErrUnauthenticated
	}

	plan, err := s.planRepo.GetByType(ctx, planType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan not found")
		slog.Error("plan lookup failed", "user_id", userID, "plan_type", planType, "error", err)
		return nil, err
	}

	release, err := s.beginIdempotent(ctx, span, userID, requestID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockWallet(ctx, span, userID)
	if err != nil {
		release(true)
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:            uuid.New(),
		UserID:        userID,
		PlanType:      plan.PlanType,
		PaymentAmount: plan.Price,
		PaymentStatus: models.PaymentStatusCompleted,
		StartsAt:      now,
		ExpiresAt:     now.AddDate(0, 0, plan.DurationDays),
	}
	entry := &models.Transaction{
		UserID:      userID,
		Type:        models.TypeSpend,
		Amount:      plan.Price,
		Description: premiumDescription,
		ReferenceID: &sub.ID,
	}
	newBalance, err := s.ledgerRepo.ApplyWithSubscription(ctx, entry, sub)
	if err != nil {
		release(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "premium purchase failed")
		slog.Error("premium purchase failed", "user_id", userID, "plan_type", planType, "error", err)
		return nil, err
	}
	release(false)

	s.afterMutation(ctx, entry, newBalance)
	slog.Info("premium purchased", "user_id", userID, "plan_type", plan.PlanType, "price", plan.Price, "balance", newBalance)
	return sub, nil
}

func (s *ledgerService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetWallet")
	defer span.End()

	cacheKey := walletCacheKey(userID)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		var wallet models.Wallet
		if err := json.Unmarshal([]byte(cached), &wallet); err != nil {
			slog.Error("failed to unmarshal cached wallet", "user_id", userID, "error", err)
		} else {
			return &wallet, nil
		}
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get wallet")
		slog.Error("failed to get wallet", "user_id", userID, "error", err)
		return nil, err
	}

	if data, err := json.Marshal(wallet); err == nil {
		if err := s.redisClient.Set(ctx, cacheKey, string(data), walletCacheTTL); err != nil {
			slog.Error("failed to cache wallet", "user_id", userID, "error", err)
		}
	}
	return wallet, nil
}

func (s *ledgerService) GetTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetTransactions")
	defer span.End()

	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.transactionRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list transactions")
		slog.Error("failed to get transaction history", "user_id", userID, "error", err)
		return nil, err
	}
	return transactions, nil
}

func (s *ledgerService) RecentDonations(ctx context.Context, limit int) ([]models.Donation, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 10
	}
	donations, err := s.donationRepo.ListRecent(ctx, limit)
	if err != nil {
		slog.Error("failed to list recent donations", "error", err)
		return nil, err
	}
	// Donor identity stays hidden for anonymous donations.
	for i := range donations {
		if donations[i].IsAnonymous {
			donations[i].DonorUserID = uuid.Nil
		}
	}
	return donations, nil
}

func (s *ledgerService) DonationStats(ctx context.Context) (*models.DonationStats, error) {
	stats, err := s.donationRepo.Stats(ctx)
	if err != nil {
		slog.Error("failed to get donation stats", "error", err)
		return nil, err
	}
	return stats, nil
}

// beginIdempotent claims the request id in Redis. The returned release func
// deletes the key again when the operation fails, so the client may retry.
func (s *ledgerService) beginIdempotent(ctx context.Context, span trace.Span, userID uuid.UUID, requestID string) (func(failed bool), error) {
	if requestID == "" {
		return func(bool) {}, nil
	}
	requestKey := fmt.Sprintf("request:%s", requestID)
	ok, err := s.redisClient.SetNX(ctx, requestKey, "pending", requestKeyTTL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to set request key")
		slog.Error("failed to set request key", "request_id", requestID, "error", err)
		return nil, err
	}
	if !ok {
		span.SetStatus(codes.Error, "request already processed")
		slog.Warn("request already processed", "request_id", requestID, "user_id", userID)
		return nil, pkgerrors.ErrRequestAlreadyProcessed
	}
	return func(failed bool) {
		if failed {
			s.redisClient.Del(ctx, requestKey)
		}
	}, nil
}

func (s *ledgerService) lockWallet(ctx context.Context, span trace.Span, userID uuid.UUID) (func(), error) {
	lockKey := fmt.Sprintf("user:%s:lock", userID)
	ok, err := s.redisClient.SetNX(ctx, lockKey, "locked", lockTTL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to acquire lock")
		slog.Error("failed to acquire wallet lock", "user_id", userID, "error", err)
		return nil, pkgerrors.ErrBalanceLocked
	}
	if !ok {
		span.SetStatus(codes.Error, "wallet is locked")
		slog.Warn("wallet is locked", "user_id", userID)
		return nil, pkgerrors.ErrBalanceLocked
	}
	return func() { s.redisClient.Del(ctx, lockKey) }, nil
}

// afterMutation drops the cached wallet summary and emits the ledger event.
// Both are best effort; the committed database state is authoritative.
func (s *ledgerService) afterMutation(ctx context.Context, entry *models.Transaction, newBalance decimal.Decimal) {
	if err := s.redisClient.Del(ctx, walletCacheKey(entry.UserID)); err != nil {
		slog.Error("failed to invalidate wallet cache", "user_id", entry.UserID, "error", err)
	}

	event := map[string]interface{}{
		"event_type":     "ledger_entry",
		"transaction_id": entry.ID.String(),
		"user_id":        entry.UserID.String(),
		"type":           string(entry.Type),
		"amount":         entry.Amount.String(),
		"balance":        newBalance.String(),
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal ledger event", "transaction_id", entry.ID, "error", err)
		return
	}

	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.kafkaProducer.Send(context.Background(), ledgerTopic, entry.ID.String(), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send ledger event after retries", "transaction_id", entry.ID, "user_id", entry.UserID)
	}()
}
