package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/internal/repository"
	"mission_rewards/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxRetries = 3

var errRetry = errors.New("retry")

// RewardLedger approves runs and credits wallets. A run is rewarded at most once,
// and repeating an approval with the same idempotency key returns the original
// outcome.
type RewardLedger struct {
	repo       LedgerRepository
	notifier   RunNotifier
	maxRetries int
	currency   string
	now        func() time.Time
}

func NewRewardLedger(repo LedgerRepository, maxRetries int, currency string) *RewardLedger {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &RewardLedger{
		repo:       repo,
		notifier:   nopNotifier{},
		maxRetries: maxRetries,
		currency:   currency,
		now:        time.Now,
	}
}

func (l *RewardLedger) SetNotifier(n RunNotifier) {
	if n == nil {
		n = nopNotifier{}
	}
	l.notifier = n
}

func (l *RewardLedger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *RewardLedger) ApproveAndReward(ctx context.Context, runID uuid.UUID, idempotencyKey string, reviewerID int64) (*model.RewardOutcome, error) {
	if idempotencyKey == "" {
		return nil, apperr.ErrValidation.WithMessage("idempotency key is required")
	}

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		out, err := l.approve(ctx, runID, idempotencyKey, reviewerID)
		if errors.Is(err, errRetry) {
			logger.Logger().Debug("approval raced, retrying",
				zap.String("run_id", runID.String()), zap.Int("attempt", attempt))
			continue
		}
		return out, err
	}
	return nil, apperr.ErrVersionConflict
}

func (l *RewardLedger) approve(ctx context.Context, runID uuid.UUID, key string, reviewerID int64) (*model.RewardOutcome, error) {
	rec, err := l.repo.GetIdempotencyRecord(ctx, key)
	switch {
	case err == nil:
		if rec.RunID != runID {
			return nil, apperr.ErrIdempotencyKeyReused
		}
		return l.replay(ctx, rec)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	run, err := l.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	existing, err := l.repo.GetRewardTransaction(ctx, runID)
	switch {
	case err == nil:
		l.rememberKey(ctx, key, runID, existing.ID)
		return &model.RewardOutcome{Run: run, Transaction: existing}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to get reward transaction: %w", err)
	}

	now := l.now().UTC()
	if run.IsExpired(now) {
		return nil, apperr.ErrRunExpired
	}
	if run.Status != model.RunPendingReview {
		return nil, apperr.ErrInvalidState.WithDetails(string(run.Status))
	}

	next := run.Clone()
	next.Status = model.RunApproved
	next.ReviewedAt = &now
	next.ReviewedBy = &reviewerID
	next.RewardedAt = &now
	next.ActiveLockKey = nil

	out, err := l.repo.ApplyReward(ctx, next, key, l.currency, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict),
			errors.Is(err, repository.ErrRewardExists),
			errors.Is(err, repository.ErrIdempotencyKeyExists):
			return nil, errRetry
		default:
			return nil, fmt.Errorf("failed to apply reward: %w", err)
		}
	}

	logger.Logger().Info("run approved",
		zap.String("run_id", runID.String()),
		zap.Int64("reviewer_id", reviewerID),
		zap.Int64("user_id", run.UserID),
		zap.Int64("amount", out.Transaction.Amount),
		zap.Int64("balance_after", out.Transaction.BalanceAfter))
	l.notifier.RunChanged(ctx, out.Run)
	return out, nil
}

func (l *RewardLedger) replay(ctx context.Context, rec *model.IdempotencyRecord) (*model.RewardOutcome, error) {
	run, err := l.loadRun(ctx, rec.RunID)
	if err != nil {
		return nil, err
	}
	txn, err := l.repo.GetTransaction(ctx, rec.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &model.RewardOutcome{Run: run, Transaction: txn}, nil
}

// rememberKey binds a new key to an existing reward so later retries with it
// replay directly. Losing the race to another writer is fine.
func (l *RewardLedger) rememberKey(ctx context.Context, key string, runID, txnID uuid.UUID) {
	err := l.repo.SaveIdempotencyRecord(ctx, &model.IdempotencyRecord{
		Key:           key,
		RunID:         runID,
		TransactionID: txnID,
		CreatedAt:     l.now().UTC(),
	})
	if err != nil && !errors.Is(err, repository.ErrIdempotencyKeyExists) {
		logger.Logger().Warn("failed to save idempotency record",
			zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (l *RewardLedger) Reject(ctx context.Context, runID uuid.UUID, reviewerID int64, reason *string) (*model.MissionRun, error) {
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		run, err := l.loadRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		now := l.now().UTC()
		if run.IsExpired(now) {
			return nil, apperr.ErrRunExpired
		}
		if run.Status != model.RunPendingReview {
			return nil, apperr.ErrInvalidState.WithDetails(string(run.Status))
		}

		next := run.Clone()
		next.Status = model.RunRejected
		next.RejectedAt = &now
		next.RejectReason = reason
		next.ReviewedAt = &now
		next.ReviewedBy = &reviewerID
		next.ActiveLockKey = nil

		updated, err := l.repo.CompareAndSwapRun(ctx, next)
		if err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, fmt.Errorf("failed to reject run: %w", err)
		}

		logger.Logger().Info("run rejected",
			zap.String("run_id", runID.String()),
			zap.Int64("reviewer_id", reviewerID))
		l.notifier.RunChanged(ctx, updated)
		return updated, nil
	}
	return nil, apperr.ErrVersionConflict
}

func (l *RewardLedger) loadRun(ctx context.Context, runID uuid.UUID) (*model.MissionRun, error) {
	run, err := l.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}
