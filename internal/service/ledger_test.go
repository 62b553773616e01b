package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardLedger_ApproveAndReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.runToReview(t, 5)

	out, err := f.ledger.ApproveAndReward(ctx, run.ID, "approve-1", 99)
	require.NoError(t, err)
	assert.Equal(t, model.RunApproved, out.Run.Status)
	assert.Nil(t, out.Run.ActiveLockKey)
	require.NotNil(t, out.Run.ReviewedBy)
	assert.Equal(t, int64(99), *out.Run.ReviewedBy)
	assert.NotNil(t, out.Run.RewardedAt)

	assert.Equal(t, int64(500), out.Transaction.Amount)
	assert.Equal(t, int64(0), out.Transaction.BalanceBefore)
	assert.Equal(t, int64(500), out.Transaction.BalanceAfter)
	assert.Equal(t, run.ID, out.Transaction.RefID)

	w, err := f.store.GetWallet(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Balance)
}

func TestRewardLedger_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("same key replays the original outcome", func(t *testing.T) {
		f := newFixture(t)
		run := f.runToReview(t, 5)

		first, err := f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
		require.NoError(t, err)
		second, err := f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
		require.NoError(t, err)

		assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
		assert.Equal(t, 1, f.store.transactionCount())
	})

	t.Run("different key on an approved run credits nothing", func(t *testing.T) {
		f := newFixture(t)
		run := f.runToReview(t, 5)

		first, err := f.ledger.ApproveAndReward(ctx, run.ID, "k1", 99)
		require.NoError(t, err)
		second, err := f.ledger.ApproveAndReward(ctx, run.ID, "k2", 100)
		require.NoError(t, err)

		assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
		assert.Equal(t, 1, f.store.transactionCount())
		w, err := f.store.GetWallet(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(500), w.Balance)
	})

	t.Run("key reused for another run", func(t *testing.T) {
		f := newFixture(t)
		a := f.runToReview(t, 5)
		b := f.runToReview(t, 6)

		_, err := f.ledger.ApproveAndReward(ctx, a.ID, "k", 99)
		require.NoError(t, err)
		_, err = f.ledger.ApproveAndReward(ctx, b.ID, "k", 99)
		assert.ErrorIs(t, err, apperr.ErrIdempotencyKeyReused)
	})

	t.Run("missing key", func(t *testing.T) {
		f := newFixture(t)
		run := f.runToReview(t, 5)
		_, err := f.ledger.ApproveAndReward(ctx, run.ID, "", 99)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestRewardLedger_ConcurrentApprovals(t *testing.T) {
	f := newFixture(t)
	run := f.runToReview(t, 5)

	const reviewers = 12
	var wg sync.WaitGroup
	outs := make([]*model.RewardOutcome, reviewers)
	errs := make([]error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = f.ledger.ApproveAndReward(context.Background(), run.ID, fmt.Sprintf("key-%d", i), int64(100+i))
		}(i)
	}
	wg.Wait()

	var txnID uuid.UUID
	for i := range outs {
		require.NoError(t, errs[i])
		if txnID == uuid.Nil {
			txnID = outs[i].Transaction.ID
		}
		assert.Equal(t, txnID, outs[i].Transaction.ID)
	}
	assert.Equal(t, 1, f.store.transactionCount())

	w, err := f.store.GetWallet(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Balance)
}

func TestRewardLedger_RequiresPendingReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.runs.CreateRun(ctx, 5, f.mission.ID)
	require.NoError(t, err)

	_, err = f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.ledger.Reject(ctx, run.ID, 99, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 0, f.store.transactionCount())

	_, err = f.ledger.ApproveAndReward(ctx, uuid.New(), "k", 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRewardLedger_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.runToReview(t, 5)
	reason := "caption does not show the place"

	rejected, err := f.ledger.Reject(ctx, run.ID, 99, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.RunRejected, rejected.Status)
	require.NotNil(t, rejected.RejectReason)
	assert.Equal(t, reason, *rejected.RejectReason)
	assert.NotNil(t, rejected.RejectedAt)
	assert.Nil(t, rejected.ActiveLockKey)

	_, err = f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 0, f.store.transactionCount())
}

func TestRewardLedger_ExpiredRunIsNotReviewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.runToReview(t, 5)
	f.now = f.now.Add(2 * time.Hour)

	_, err := f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
	assert.ErrorIs(t, err, apperr.ErrRunExpired)
	_, err = f.ledger.Reject(ctx, run.ID, 99, nil)
	assert.ErrorIs(t, err, apperr.ErrRunExpired)

	stored, err := f.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunPendingReview, stored.Status)
	assert.Equal(t, run.Version, stored.Version)
	assert.Equal(t, 0, f.store.transactionCount())

	n, err := f.runs.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRewardLedger_ConfiguredCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger = NewRewardLedger(f.store, 3, "USD")
	f.ledger.SetClock(func() time.Time { return f.now })
	run := f.runToReview(t, 5)

	out, err := f.ledger.ApproveAndReward(ctx, run.ID, "k", 99)
	require.NoError(t, err)
	assert.Equal(t, "USD", out.Transaction.Currency)

	wallets := NewWalletService(f.store, "USD")
	w, txns, err := wallets.GetWallet(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "USD", w.Currency)
	assert.Equal(t, int64(500), w.Balance)
	require.Len(t, txns, 1)
	assert.Equal(t, "USD", txns[0].Currency)
}
