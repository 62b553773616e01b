package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/internal/repository"
	"mission_rewards/internal/verify"
	"mission_rewards/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProofTokenIssuer mints signed single-use tokens bound to a mission and its place.
type ProofTokenIssuer struct {
	repo       TokenRepository
	catalog    Catalog
	signer     *verify.Signer
	defaultTTL time.Duration
	now        func() time.Time
}

func NewProofTokenIssuer(repo TokenRepository, catalog Catalog, signer *verify.Signer, defaultTTL time.Duration) *ProofTokenIssuer {
	if defaultTTL <= 0 {
		defaultTTL = verify.DefaultTokenTTL
	}
	return &ProofTokenIssuer{
		repo:       repo,
		catalog:    catalog,
		signer:     signer,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (i *ProofTokenIssuer) SetClock(now func() time.Time) {
	i.now = now
}

// Issue persists a fresh token record and returns its encoded form. A zero ttl
// uses the configured default.
func (i *ProofTokenIssuer) Issue(ctx context.Context, missionID uuid.UUID, ttl time.Duration) (*model.IssuedToken, error) {
	if ttl < 0 {
		return nil, apperr.ErrValidation.WithMessage("ttl must not be negative")
	}
	if ttl == 0 {
		ttl = i.defaultTTL
	}

	mission, err := i.catalog.GetMission(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotFound.WithMessage("mission not found")
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	nonce, err := verify.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := i.now().UTC()
	tok := &model.ProofToken{
		ID:        uuid.New(),
		MissionID: mission.ID,
		PlaceID:   mission.PlaceID,
		Nonce:     nonce,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	raw, err := i.signer.Issue(tok.MissionID, tok.PlaceID, tok.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	if err := i.repo.CreateProofToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to store proof token: %w", err)
	}

	logger.Logger().Info("proof token issued",
		zap.String("token_id", tok.ID.String()),
		zap.String("mission_id", tok.MissionID.String()),
		zap.Time("expires_at", tok.ExpiresAt))
	return &model.IssuedToken{Token: tok, Raw: raw}, nil
}
