package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/studyhive/coin-ledger/internal/models"
	pkgerrors "github.com/studyhive/coin-ledger/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc      *ledgerService
	store    *memStore
	redis    *fakeRedis
	producer *fakeProducer
}

func newTestEnv() *testEnv {
	store := newMemStore()
	redisClient := newFakeRedis()
	producer := &fakeProducer{}
	plans := &fakePlanRepo{plans: map[string]models.SubscriptionPlan{
		"premium": {PlanType: "premium", Price: decimal.NewFromInt(100), DurationDays: 30},
	}}
	svc := NewLedgerService(
		&fakeLedgerRepo{store: store},
		&fakeWalletRepo{store: store},
		&fakeTransactionRepo{store: store},
		&fakeDonationRepo{store: store},
		plans,
		redisClient,
		producer,
		decimal.NewFromInt(5),
		20,
	)
	return &testEnv{svc: svc, store: store, redis: redisClient, producer: producer}
}

func TestLedgerService_Credit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("InvalidAmount", func(t *testing.T) {
		_, err := env.svc.Credit(ctx, userID, decimal.Zero, "bonus", models.TypeEarn)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)

		_, err = env.svc.Credit(ctx, userID, decimal.NewFromInt(-5), "bonus", models.TypeEarn)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})

	t.Run("RejectsDebitType", func(t *testing.T) {
		_, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(5), "bonus", models.TypeSpend)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionType)
	})

	t.Run("DefaultsToEarn", func(t *testing.T) {
		balance, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(5), "bonus", "")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(5)))

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.TotalEarned.Equal(decimal.NewFromInt(5)))
	})

	t.Run("CommissionCountsAsEarned", func(t *testing.T) {
		_, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(3), "sale commission", models.TypeCommission)
		require.NoError(t, err)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(8)))
		assert.True(t, wallet.TotalEarned.Equal(decimal.NewFromInt(8)))
	})
}

func TestLedgerService_DebitBoundaries(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	env.store.seedWallet(userID, decimal.NewFromInt(50))

	t.Run("ExactBalanceLeavesZero", func(t *testing.T) {
		balance, err := env.svc.Debit(ctx, userID, decimal.NewFromInt(50), "unlock materials", models.TypeSpend)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("OneCentOverFailsUnchanged", func(t *testing.T) {
		env.store.seedWallet(userID, decimal.NewFromInt(10))
		over := decimal.NewFromInt(10).Add(decimal.RequireFromString("0.01"))

		_, err := env.svc.Debit(ctx, userID, over, "unlock materials", models.TypeSpend)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10)))
	})
}

func TestLedgerService_ClaimAdReward(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	// Scenario: fresh wallet, one claim issues the configured 5 coins.
	balance, err := env.svc.ClaimAdReward(ctx, userID, "video", "req-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(5)))

	wallet := env.store.walletCopy(userID)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(5)))
	assert.True(t, wallet.TotalEarned.Equal(decimal.NewFromInt(5)))

	env.store.mu.Lock()
	require.Len(t, env.store.transactions, 1)
	tx := env.store.transactions[0]
	require.Len(t, env.store.adViews, 1)
	view := env.store.adViews[0]
	env.store.mu.Unlock()

	assert.Equal(t, models.TypeEarn, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "Earned from watching advertisement", tx.Description)
	require.NotNil(t, tx.ReferenceID)
	assert.Equal(t, view.ID, *tx.ReferenceID)
	assert.Equal(t, "video", view.AdType)

	t.Run("DuplicateRequestRejected", func(t *testing.T) {
		_, err := env.svc.ClaimAdReward(ctx, userID, "video", "req-1")
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(5)))
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := env.svc.ClaimAdReward(ctx, uuid.Nil, "video", "req-2")
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthenticated)
	})
}

func TestLedgerService_Donate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		env := newTestEnv()
		userID := uuid.New()
		env.store.seedWallet(userID, decimal.NewFromInt(100))

		donation, err := env.svc.Donate(ctx, userID, decimal.NewFromInt(30), "good luck", true, "req-1")
		require.NoError(t, err)
		assert.True(t, donation.Amount.Equal(decimal.NewFromInt(30)))
		assert.True(t, donation.IsAnonymous)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(70)))
		assert.True(t, wallet.TotalSpent.Equal(decimal.NewFromInt(30)))

		env.store.mu.Lock()
		defer env.store.mu.Unlock()
		require.Len(t, env.store.donations, 1)
		require.Len(t, env.store.transactions, 1)
		tx := env.store.transactions[0]
		assert.Equal(t, models.TypeSpend, tx.Type)
		assert.True(t, tx.Amount.Equal(decimal.NewFromInt(30)))
		assert.Equal(t, "Donation to help students access free materials", tx.Description)
	})

	t.Run("InsufficientBalanceLeavesNoTrace", func(t *testing.T) {
		env := newTestEnv()
		userID := uuid.New()
		env.store.seedWallet(userID, decimal.NewFromInt(10))

		_, err := env.svc.Donate(ctx, userID, decimal.NewFromInt(50), "", false, "req-1")
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10)))

		env.store.mu.Lock()
		defer env.store.mu.Unlock()
		assert.Empty(t, env.store.donations)
		assert.Empty(t, env.store.transactions)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.svc.Donate(ctx, uuid.New(), decimal.Zero, "", false, "req-1")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.svc.Donate(ctx, uuid.Nil, decimal.NewFromInt(5), "", false, "req-1")
		assert.ErrorIs(t, err, pkgerrors.ErrUnauthenticated)
	})

	t.Run("FailedRequestIDCanBeRetried", func(t *testing.T) {
		env := newTestEnv()
		userID := uuid.New()
		env.store.seedWallet(userID, decimal.NewFromInt(10))

		_, err := env.svc.Donate(ctx, userID, decimal.NewFromInt(50), "", false, "req-1")
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)

		// The request key is released on failure, so a corrected retry
		// with the same id goes through.
		_, err = env.svc.Donate(ctx, userID, decimal.NewFromInt(5), "", false, "req-1")
		assert.NoError(t, err)
	})
}

// Two simultaneous donations that each pass the precondition individually
// must not drive the balance negative: exactly one commits.
func TestLedgerService_ConcurrentDonationsCannotOverspend(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	env.store.seedWallet(userID, decimal.NewFromInt(10))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requestID := "concurrent-" + string(rune('a'+i))
			_, errs[i] = env.svc.Donate(ctx, userID, decimal.NewFromInt(10), "", false, requestID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one donation must commit")

	wallet := env.store.walletCopy(userID)
	assert.False(t, wallet.Balance.IsNegative(), "balance must never go negative")
	assert.True(t, wallet.Balance.IsZero())

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Len(t, env.store.donations, 1)
	assert.Len(t, env.store.transactions, 1)
}

// The ledger must always explain the balance: credits minus debits equals
// the balance delta.
func TestLedgerService_LedgerExplainsBalance(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	initial := decimal.NewFromInt(40)
	env.store.seedWallet(userID, initial)

	_, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(25), "answer accepted", models.TypeEarn)
	require.NoError(t, err)
	_, err = env.svc.Credit(ctx, userID, decimal.NewFromInt(7), "sale commission", models.TypeCommission)
	require.NoError(t, err)
	_, err = env.svc.Debit(ctx, userID, decimal.NewFromInt(12), "unlock materials", models.TypeSpend)
	require.NoError(t, err)
	_, err = env.svc.Withdraw(ctx, userID, decimal.NewFromInt(20), "wd-1")
	require.NoError(t, err)
	_, err = env.svc.Debit(ctx, userID, decimal.NewFromInt(999), "unlock materials", models.TypeSpend)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)

	env.store.mu.Lock()
	credits, debits := decimal.Zero, decimal.Zero
	for _, tx := range env.store.transactions {
		if tx.Type.IsCredit() {
			credits = credits.Add(tx.Amount)
		} else {
			debits = debits.Add(tx.Amount)
		}
	}
	env.store.mu.Unlock()

	wallet := env.store.walletCopy(userID)
	assert.True(t, wallet.Balance.Sub(initial).Equal(credits.Sub(debits)),
		"balance delta %s != ledger sum %s", wallet.Balance.Sub(initial), credits.Sub(debits))
	assert.True(t, wallet.TotalWithdrawn.Equal(decimal.NewFromInt(20)))
}

func TestLedgerService_PurchasePremium(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	env.store.seedWallet(userID, decimal.NewFromInt(150))

	t.Run("UnknownPlan", func(t *testing.T) {
		_, err := env.svc.PurchasePremium(ctx, userID, "platinum", "req-0")
		assert.ErrorIs(t, err, pkgerrors.ErrPlanNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		sub, err := env.svc.PurchasePremium(ctx, userID, "premium", "req-1")
		require.NoError(t, err)
		assert.Equal(t, "premium", sub.PlanType)
		assert.Equal(t, models.PaymentStatusCompleted, sub.PaymentStatus)
		assert.True(t, sub.PaymentAmount.Equal(decimal.NewFromInt(100)))
		assert.WithinDuration(t, sub.StartsAt.AddDate(0, 0, 30), sub.ExpiresAt, time.Second)

		wallet := env.store.walletCopy(userID)
		assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(50)))
		assert.True(t, wallet.TotalSpent.Equal(decimal.NewFromInt(100)))
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		_, err := env.svc.PurchasePremium(ctx, userID, "premium", "req-2")
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)
	})
}

func TestLedgerService_GetWallet(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()
	env.store.seedWallet(userID, decimal.NewFromInt(42))

	first, err := env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)

	// Second read is served from cache and must match.
	second, err := env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, first.Balance.Equal(second.Balance))
	assert.True(t, first.TotalEarned.Equal(second.TotalEarned))

	// A mutation invalidates the cached summary.
	_, err = env.svc.Credit(ctx, userID, decimal.NewFromInt(8), "bonus", models.TypeEarn)
	require.NoError(t, err)

	third, err := env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, third.Balance.Equal(decimal.NewFromInt(50)))
}

func TestLedgerService_GetTransactions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 25; i++ {
		_, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(1), "bonus", models.TypeEarn)
		require.NoError(t, err)
	}

	t.Run("DefaultLimit", func(t *testing.T) {
		transactions, err := env.svc.GetTransactions(ctx, userID, 0, 0)
		require.NoError(t, err)
		assert.Len(t, transactions, 20)
	})

	t.Run("Offset", func(t *testing.T) {
		transactions, err := env.svc.GetTransactions(ctx, userID, 20, 20)
		require.NoError(t, err)
		assert.Len(t, transactions, 5)
	})

	t.Run("CapAppliesOverMax", func(t *testing.T) {
		transactions, err := env.svc.GetTransactions(ctx, userID, 10000, 0)
		require.NoError(t, err)
		assert.Len(t, transactions, 25)
	})

	t.Run("ReadIsIdempotent", func(t *testing.T) {
		first, err := env.svc.GetTransactions(ctx, userID, 20, 0)
		require.NoError(t, err)
		second, err := env.svc.GetTransactions(ctx, userID, 20, 0)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestLedgerService_RecentDonationsMasksAnonymousDonors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	donor := uuid.New()
	env.store.seedWallet(donor, decimal.NewFromInt(100))

	_, err := env.svc.Donate(ctx, donor, decimal.NewFromInt(30), "good luck", true, "req-1")
	require.NoError(t, err)
	_, err = env.svc.Donate(ctx, donor, decimal.NewFromInt(10), "", false, "req-2")
	require.NoError(t, err)

	donations, err := env.svc.RecentDonations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, donations, 2)
	assert.Equal(t, donor, donations[0].DonorUserID)
	assert.Equal(t, uuid.Nil, donations[1].DonorUserID, "anonymous donor id must be masked")

	stats, err := env.svc.DonationStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(2), stats.Count)
}

func TestLedgerService_EmitsLedgerEvents(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.Credit(ctx, userID, decimal.NewFromInt(5), "bonus", models.TypeEarn)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return env.producer.count() == 1
	}, time.Second, 10*time.Millisecond, "ledger event must be published")
}
