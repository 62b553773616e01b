package service

import (
	"context"
	"fmt"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RunLister interface {
	ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error)
}

type CodeIssuer interface {
	Issue(ctx context.Context, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error)
}

const (
	auditApprove   = "approve"
	auditReject    = "reject"
	auditIssueCode = "issue_code"
)

const DefaultReviewPageSize = 50

// ReviewGateway is the only entry point for privileged actions. It checks the
// caller's permission before delegating and writes an audit entry for every attempt.
type ReviewGateway struct {
	perms  PermissionChecker
	audit  AuditSink
	ledger LedgerI
	runs   RunLister
	issuer CodeIssuer
	now    func() time.Time
}

func NewReviewGateway(perms PermissionChecker, audit AuditSink, ledger LedgerI, runs RunLister, issuer CodeIssuer) *ReviewGateway {
	return &ReviewGateway{
		perms:  perms,
		audit:  audit,
		ledger: ledger,
		runs:   runs,
		issuer: issuer,
		now:    time.Now,
	}
}

func (g *ReviewGateway) Approve(ctx context.Context, reviewerID int64, runID uuid.UUID, idempotencyKey string) (*model.RewardOutcome, error) {
	if err := g.authorize(ctx, reviewerID, model.PermRunsApprove, auditApprove, runID); err != nil {
		return nil, err
	}

	out, err := g.ledger.ApproveAndReward(ctx, runID, idempotencyKey, reviewerID)
	var details []string
	if out != nil && out.Transaction != nil {
		details = []string{"transaction_id=" + out.Transaction.ID.String()}
	}
	g.record(ctx, reviewerID, auditApprove, runID, err, details...)
	return out, err
}

func (g *ReviewGateway) Reject(ctx context.Context, reviewerID int64, runID uuid.UUID, reason *string) (*model.MissionRun, error) {
	if err := g.authorize(ctx, reviewerID, model.PermRunsReject, auditReject, runID); err != nil {
		return nil, err
	}

	run, err := g.ledger.Reject(ctx, runID, reviewerID, reason)
	var details []string
	if reason != nil {
		details = []string{"reason=" + *reason}
	}
	g.record(ctx, reviewerID, auditReject, runID, err, details...)
	return run, err
}

func (g *ReviewGateway) ListPendingReview(ctx context.Context, reviewerID int64, limit int) ([]*model.MissionRun, error) {
	if err := g.require(ctx, reviewerID, model.PermRunsRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReviewPageSize
	}
	return g.runs.ListByStatus(ctx, model.RunPendingReview, limit)
}

func (g *ReviewGateway) IssueCode(ctx context.Context, reviewerID int64, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error) {
	if err := g.authorize(ctx, reviewerID, model.PermCodesIssue, auditIssueCode, uuid.Nil); err != nil {
		return nil, err
	}

	issued, err := g.issuer.Issue(ctx, missionID, ttl)
	details := []string{"mission_id=" + missionID.String()}
	if issued != nil {
		details = append(details, "token_id="+issued.Token.ID.String())
	}
	g.record(ctx, reviewerID, auditIssueCode, uuid.Nil, err, details...)
	return issued, err
}

// authorize checks the caller and the permission, and audits a denial.
func (g *ReviewGateway) authorize(ctx context.Context, reviewerID int64, perm model.Permission, action string, runID uuid.UUID) error {
	err := g.require(ctx, reviewerID, perm)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindAuthentication, apperr.KindPermission:
			g.record(ctx, reviewerID, action, runID, err, "permission="+string(perm))
		}
	}
	return err
}

func (g *ReviewGateway) require(ctx context.Context, reviewerID int64, perm model.Permission) error {
	if reviewerID == 0 {
		logger.Logger().Warn("review action without an authenticated reviewer",
			zap.String("permission", string(perm)))
		return apperr.ErrUnauthenticated
	}

	ok, err := g.perms.HasPermission(ctx, reviewerID, perm)
	if err != nil {
		return fmt.Errorf("failed to check permission: %w", err)
	}
	if !ok {
		logger.Logger().Warn("permission denied",
			zap.Int64("reviewer_id", reviewerID),
			zap.String("permission", string(perm)))
		return apperr.ErrForbidden
	}
	return nil
}

// record writes an audit entry. Audit failures are logged and never fail the action.
func (g *ReviewGateway) record(ctx context.Context, actorID int64, action string, runID uuid.UUID, result error, details ...string) {
	outcome := "ok"
	if result != nil {
		outcome = apperr.From(result).Code
	}
	entry := &model.AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		RunID:     runID,
		Outcome:   outcome,
		Details:   details,
		CreatedAt: g.now().UTC(),
	}
	if err := g.audit.Record(ctx, entry); err != nil {
		logger.Logger().Error("failed to record audit entry",
			zap.String("action", action),
			zap.Int64("actor_id", actorID),
			zap.Error(err))
	}
}
