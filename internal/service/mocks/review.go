package mocks

import (
	"context"
	"time"

	"mission_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockPermissionChecker struct {
	mock.Mock
}

func (m *MockPermissionChecker) HasPermission(ctx context.Context, reviewerID int64, perm model.Permission) (bool, error) {
	args := m.Called(ctx, reviewerID, perm)
	return args.Bool(0), args.Error(1)
}

type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Record(ctx context.Context, entry *model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ApproveAndReward(ctx context.Context, runID uuid.UUID, idempotencyKey string, reviewerID int64) (*model.RewardOutcome, error) {
	args := m.Called(ctx, runID, idempotencyKey, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RewardOutcome), args.Error(1)
}

func (m *MockLedger) Reject(ctx context.Context, runID uuid.UUID, reviewerID int64, reason *string) (*model.MissionRun, error) {
	args := m.Called(ctx, runID, reviewerID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MissionRun), args.Error(1)
}

type MockRunLister struct {
	mock.Mock
}

func (m *MockRunLister) ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MissionRun), args.Error(1)
}

type MockCodeIssuer struct {
	mock.Mock
}

func (m *MockCodeIssuer) Issue(ctx context.Context, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error) {
	args := m.Called(ctx, missionID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IssuedToken), args.Error(1)
}
