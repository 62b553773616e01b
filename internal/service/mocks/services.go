package mocks

import (
	"context"
	"time"

	"mission_rewards/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) run(args mock.Arguments) (*model.MissionRun, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MissionRun), args.Error(1)
}

func (m *MockRunService) CreateRun(ctx context.Context, userID int64, missionID uuid.UUID) (*model.MissionRun, error) {
	return m.run(m.Called(ctx, userID, missionID))
}

func (m *MockRunService) VerifyLocation(ctx context.Context, runID uuid.UUID, userID int64, fix model.LocationFix) (*model.MissionRun, error) {
	return m.run(m.Called(ctx, runID, userID, fix))
}

func (m *MockRunService) VerifyCode(ctx context.Context, runID uuid.UUID, userID int64, rawToken string) (*model.MissionRun, error) {
	return m.run(m.Called(ctx, runID, userID, rawToken))
}

func (m *MockRunService) VerifySocialProof(ctx context.Context, runID uuid.UUID, userID int64, proof model.SocialProof) (*model.MissionRun, error) {
	return m.run(m.Called(ctx, runID, userID, proof))
}

func (m *MockRunService) GetStatus(ctx context.Context, runID uuid.UUID, requesterID int64) (*model.MissionRun, error) {
	return m.run(m.Called(ctx, runID, requesterID))
}

type MockReviewGateway struct {
	mock.Mock
}

func (m *MockReviewGateway) Approve(ctx context.Context, reviewerID int64, runID uuid.UUID, idempotencyKey string) (*model.RewardOutcome, error) {
	args := m.Called(ctx, reviewerID, runID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RewardOutcome), args.Error(1)
}

func (m *MockReviewGateway) Reject(ctx context.Context, reviewerID int64, runID uuid.UUID, reason *string) (*model.MissionRun, error) {
	args := m.Called(ctx, reviewerID, runID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MissionRun), args.Error(1)
}

func (m *MockReviewGateway) ListPendingReview(ctx context.Context, reviewerID int64, limit int) ([]*model.MissionRun, error) {
	args := m.Called(ctx, reviewerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MissionRun), args.Error(1)
}

func (m *MockReviewGateway) IssueCode(ctx context.Context, reviewerID int64, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error) {
	args := m.Called(ctx, reviewerID, missionID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IssuedToken), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, []*model.WalletTransaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Wallet), args.Get(1).([]*model.WalletTransaction), args.Error(2)
}
