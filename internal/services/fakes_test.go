package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/infrastructure/redis"
	"github.com/studyhive/coin-ledger/internal/models"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
)

// memStore backs the fake repositories with real, shared state so the
// tests can exercise balance arithmetic and concurrent callers instead of
// scripted expectations.
type memStore struct {
	mu            sync.Mutex
	wallets       map[uuid.UUID]*models.Wallet
	transactions  []models.Transaction
	donations     []models.Donation
	adViews       []models.AdView
	subscriptions []models.Subscription
}

func newMemStore() *memStore {
	return &memStore{wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (s *memStore) ensureWallet(userID uuid.UUID) *models.Wallet {
	w, ok := s.wallets[userID]
	if !ok {
		w = &models.Wallet{
			ID:             uuid.New(),
			UserID:         userID,
			Balance:        decimal.Zero,
			TotalEarned:    decimal.Zero,
			TotalSpent:     decimal.Zero,
			TotalWithdrawn: decimal.Zero,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		s.wallets[userID] = w
	}
	return w
}

// seedWallet installs a wallet with the given starting balance.
func (s *memStore) seedWallet(userID uuid.UUID, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.ensureWallet(userID)
	w.Balance = balance
}

func (s *memStore) walletCopy(userID uuid.UUID) models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureWallet(userID)
}

type fakeLedgerRepo struct {
	store *memStore
}

func (r *fakeLedgerRepo) apply(entry *models.Transaction, extra func(s *memStore)) (decimal.Decimal, error) {
	if entry == nil {
		return decimal.Zero, pkgerrors.ErrNilTransaction
	}
	if !entry.Type.Valid() {
		return decimal.Zero, pkgerrors.ErrInvalidTransactionType
	}
	if !entry.Amount.IsPositive() {
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.ensureWallet(entry.UserID)
	delta := entry.Amount
	if !entry.Type.IsCredit() {
		delta = entry.Amount.Neg()
	}
	newBalance := w.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, pkgerrors.ErrInsufficientBalance
	}

	w.Balance = newBalance
	switch entry.Type {
	case models.TypeSpend:
		w.TotalSpent = w.TotalSpent.Add(entry.Amount)
	case models.TypeWithdraw:
		w.TotalWithdrawn = w.TotalWithdrawn.Add(entry.Amount)
	default:
		w.TotalEarned = w.TotalEarned.Add(entry.Amount)
	}
	w.UpdatedAt = time.Now()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	s.transactions = append(s.transactions, *entry)
	if extra != nil {
		extra(s)
	}
	return newBalance, nil
}

func (r *fakeLedgerRepo) Apply(ctx context.Context, entry *models.Transaction) (decimal.Decimal, error) {
	return r.apply(entry, nil)
}

func (r *fakeLedgerRepo) ApplyWithDonation(ctx context.Context, entry *models.Transaction, donation *models.Donation) (decimal.Decimal, error) {
	return r.apply(entry, func(s *memStore) {
		donation.CreatedAt = time.Now()
		s.donations = append(s.donations, *donation)
	})
}

func (r *fakeLedgerRepo) ApplyWithAdView(ctx context.Context, entry *models.Transaction, view *models.AdView) (decimal.Decimal, error) {
	return r.apply(entry, func(s *memStore) {
		view.CreatedAt = time.Now()
		s.adViews = append(s.adViews, *view)
	})
}

func (r *fakeLedgerRepo) ApplyWithSubscription(ctx context.Context, entry *models.Transaction, sub *models.Subscription) (decimal.Decimal, error) {
	return r.apply(entry, func(s *memStore) {
		sub.CreatedAt = time.Now()
		s.subscriptions = append(s.subscriptions, *sub)
	})
}

type fakeWalletRepo struct {
	store *memStore
}

func (r *fakeWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w := r.store.walletCopy(userID)
	return &w, nil
}

type fakeTransactionRepo struct {
	store *memStore
}

func (r *fakeTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			tx := s.transactions[i]
			return &tx, nil
		}
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var newestFirst []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			newestFirst = append(newestFirst, s.transactions[i])
		}
	}
	if offset >= len(newestFirst) {
		return nil, nil
	}
	newestFirst = newestFirst[offset:]
	if limit < len(newestFirst) {
		newestFirst = newestFirst[:limit]
	}
	return newestFirst, nil
}

type fakeDonationRepo struct {
	store *memStore
}

func (r *fakeDonationRepo) ListRecent(ctx context.Context, limit int) ([]models.Donation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var newestFirst []models.Donation
	for i := len(s.donations) - 1; i >= 0 && len(newestFirst) < limit; i-- {
		newestFirst = append(newestFirst, s.donations[i])
	}
	return newestFirst, nil
}

func (r *fakeDonationRepo) Stats(ctx context.Context) (*models.DonationStats, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.DonationStats{TotalAmount: decimal.Zero}
	for i := range s.donations {
		stats.TotalAmount = stats.TotalAmount.Add(s.donations[i].Amount)
		stats.Count++
	}
	return stats, nil
}

type fakePlanRepo struct {
	plans map[string]models.SubscriptionPlan
}

func (r *fakePlanRepo) GetByType(ctx context.Context, planType string) (*models.SubscriptionPlan, error) {
	plan, ok := r.plans[planType]
	if !ok {
		return nil, pkgerrors.ErrPlanNotFound
	}
	return &plan, nil
}

func (r *fakePlanRepo) GetPrice(ctx context.Context, planType string) (decimal.Decimal, error) {
	plan, err := r.GetByType(ctx, planType)
	if err != nil {
		return decimal.Zero, err
	}
	return plan.Price, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*models.Profile)}
}

func (r *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.Role == "" {
		profile.Role = models.RoleStudent
	}
	profile.CreatedAt = time.Now()
	r.profiles[profile.Email] = profile
	return nil
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r *fakeProfileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[email]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return p, nil
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = toString(value)
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = toString(value)
	return true, nil
}

func (f *fakeRedis) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type sentMessage struct {
	Topic string
	Key   string
	Value []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (p *fakeProducer) Send(ctx context.Context, topic string, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{Topic: topic, Key: key, Value: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}
