package service

import (
	"context"
	"time"

	"mission_rewards/internal/model"

	"github.com/google/uuid"
)

type Catalog interface {
	GetMission(ctx context.Context, id uuid.UUID) (*model.Mission, error)
	GetPlace(ctx context.Context, id uuid.UUID) (*model.Place, error)
}

type RunRepository interface {
	CreateRun(ctx context.Context, run *model.MissionRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*model.MissionRun, error)
	GetActiveRun(ctx context.Context, lockKey string) (*model.MissionRun, error)
	HasApprovedRun(ctx context.Context, userID int64, missionID uuid.UUID) (bool, error)
	CompareAndSwapRun(ctx context.Context, run *model.MissionRun) (*model.MissionRun, error)
	GetProofTokenByNonce(ctx context.Context, nonce string) (*model.ProofToken, error)
	ConsumeTokenAndSwapRun(ctx context.Context, tokenID uuid.UUID, run *model.MissionRun, now time.Time) (*model.MissionRun, error)
	ListRunsByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error)
	ListExpiredRuns(ctx context.Context, now time.Time, limit int) ([]*model.MissionRun, error)
}

type LedgerRepository interface {
	GetRun(ctx context.Context, id uuid.UUID) (*model.MissionRun, error)
	CompareAndSwapRun(ctx context.Context, run *model.MissionRun) (*model.MissionRun, error)
	GetIdempotencyRecord(ctx context.Context, key string) (*model.IdempotencyRecord, error)
	SaveIdempotencyRecord(ctx context.Context, rec *model.IdempotencyRecord) error
	GetRewardTransaction(ctx context.Context, runID uuid.UUID) (*model.WalletTransaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error)
	ApplyReward(ctx context.Context, run *model.MissionRun, idempotencyKey, currency string, now time.Time) (*model.RewardOutcome, error)
}

type TokenRepository interface {
	CreateProofToken(ctx context.Context, tok *model.ProofToken) error
}

type WalletRepository interface {
	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.WalletTransaction, error)
}

// RateLimiter is a shared counting service. Errors mean the backing store is
// unavailable; callers fail open.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type PermissionChecker interface {
	HasPermission(ctx context.Context, reviewerID int64, perm model.Permission) (bool, error)
}

type AuditSink interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
}

// RunNotifier is told about every persisted transition. It must not block.
type RunNotifier interface {
	RunChanged(ctx context.Context, run *model.MissionRun)
}

type RunServiceI interface {
	CreateRun(ctx context.Context, userID int64, missionID uuid.UUID) (*model.MissionRun, error)
	VerifyLocation(ctx context.Context, runID uuid.UUID, userID int64, fix model.LocationFix) (*model.MissionRun, error)
	VerifyCode(ctx context.Context, runID uuid.UUID, userID int64, rawToken string) (*model.MissionRun, error)
	VerifySocialProof(ctx context.Context, runID uuid.UUID, userID int64, proof model.SocialProof) (*model.MissionRun, error)
	GetStatus(ctx context.Context, runID uuid.UUID, requesterID int64) (*model.MissionRun, error)
}

type LedgerI interface {
	ApproveAndReward(ctx context.Context, runID uuid.UUID, idempotencyKey string, reviewerID int64) (*model.RewardOutcome, error)
	Reject(ctx context.Context, runID uuid.UUID, reviewerID int64, reason *string) (*model.MissionRun, error)
}

type ReviewGatewayI interface {
	Approve(ctx context.Context, reviewerID int64, runID uuid.UUID, idempotencyKey string) (*model.RewardOutcome, error)
	Reject(ctx context.Context, reviewerID int64, runID uuid.UUID, reason *string) (*model.MissionRun, error)
	ListPendingReview(ctx context.Context, reviewerID int64, limit int) ([]*model.MissionRun, error)
	IssueCode(ctx context.Context, reviewerID int64, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error)
}

type WalletServiceI interface {
	GetWallet(ctx context.Context, userID int64) (*model.Wallet, []*model.WalletTransaction, error)
}

type nopNotifier struct{}

func (nopNotifier) RunChanged(context.Context, *model.MissionRun) {}
