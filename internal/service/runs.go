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

const DefaultRunTTL = 24 * time.Hour

type Verifiers struct {
	Gps    *verify.GpsVerifier
	Code   *verify.CodeVerifier
	Social *verify.SocialProofVerifier
}

// RunService owns the MissionRun lifecycle. Every mutation goes through a
// compare-and-swap on the run version and requires the exact predecessor state.
type RunService struct {
	repo      RunRepository
	catalog   Catalog
	limiter   RateLimiter
	notifier  RunNotifier
	verifiers Verifiers
	ttl       time.Duration
	now       func() time.Time
}

func NewRunService(repo RunRepository, catalog Catalog, limiter RateLimiter, verifiers Verifiers, ttl time.Duration) *RunService {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RunService{
		repo:      repo,
		catalog:   catalog,
		limiter:   limiter,
		notifier:  nopNotifier{},
		verifiers: verifiers,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *RunService) SetNotifier(n RunNotifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

func (s *RunService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RunService) CreateRun(ctx context.Context, userID int64, missionID uuid.UUID) (*model.MissionRun, error) {
	mission, err := s.activeMission(ctx, missionID)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.HasApprovedRun(ctx, userID, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check completed runs: %w", err)
	}
	if completed {
		return nil, apperr.ErrMissionAlreadyCompleted
	}

	lock := model.LockKey(userID, missionID)
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now().UTC()
		lockKey := lock
		run := &model.MissionRun{
			ID:            uuid.New(),
			UserID:        userID,
			MissionID:     missionID,
			Status:        model.NextStatus(mission, nil),
			ExpiresAt:     now.Add(s.ttl),
			RewardAmount:  mission.RewardAmount,
			ActiveLockKey: &lockKey,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = s.repo.CreateRun(ctx, run)
		if err == nil {
			logger.Logger().Info("run created",
				zap.String("run_id", run.ID.String()),
				zap.Int64("user_id", userID),
				zap.String("mission_id", missionID.String()),
				zap.String("status", string(run.Status)))
			s.notifier.RunChanged(ctx, run)
			return run, nil
		}
		if !errors.Is(err, repository.ErrActiveRunExists) {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}

		active, err := s.repo.GetActiveRun(ctx, lock)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to get active run: %w", err)
		}
		if !active.IsExpired(now) {
			return nil, apperr.ErrActiveRunExists
		}
		if _, err := s.expire(ctx, active, now); err != nil && !errors.Is(err, apperr.ErrInvalidState) {
			return nil, err
		}
	}

	return nil, apperr.ErrActiveRunExists
}

func (s *RunService) VerifyLocation(ctx context.Context, runID uuid.UUID, userID int64, fix model.LocationFix) (*model.MissionRun, error) {
	run, mission, now, err := s.loadForStep(ctx, runID, userID, model.StepLocation)
	if err != nil {
		return nil, err
	}

	place, err := s.catalog.GetPlace(ctx, mission.PlaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	distance, err := s.verifiers.Gps.Verify(place, fix, now)
	if err != nil {
		s.logRejection(run, model.StepLocation, err, zap.Float64("distance_m", distance), zap.Float64("accuracy_m", fix.Accuracy))
		return nil, err
	}

	next := s.advance(run, mission, model.StepLocation, now)
	next.LocationDistanceMeters = &distance
	return s.swap(ctx, run, next)
}

func (s *RunService) VerifyCode(ctx context.Context, runID uuid.UUID, userID int64, rawToken string) (*model.MissionRun, error) {
	run, mission, now, err := s.loadForStep(ctx, runID, userID, model.StepCode)
	if err != nil {
		return nil, err
	}

	claims, err := s.verifiers.Code.VerifyClaims(rawToken, mission.ID, mission.PlaceID)
	if err != nil {
		s.logRejection(run, model.StepCode, err)
		return nil, err
	}

	tok, err := s.repo.GetProofTokenByNonce(ctx, claims.Nonce)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logRejection(run, model.StepCode, apperr.ErrTokenNotFound)
			return nil, apperr.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get proof token: %w", err)
	}
	if tok.MissionID != mission.ID || tok.PlaceID != mission.PlaceID {
		s.logRejection(run, model.StepCode, apperr.ErrTokenMismatch)
		return nil, apperr.ErrTokenMismatch
	}
	if err := verify.CheckRecord(tok, now); err != nil {
		s.logRejection(run, model.StepCode, err)
		return nil, err
	}

	next := s.advance(run, mission, model.StepCode, now)
	updated, err := s.repo.ConsumeTokenAndSwapRun(ctx, tok.ID, next, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenUnavailable):
			return nil, s.classifyUnavailableToken(ctx, claims.Nonce, now)
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, apperr.ErrInvalidState
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.ErrNotFound
		default:
			return nil, fmt.Errorf("failed to consume proof token: %w", err)
		}
	}

	s.logTransition(run, updated)
	s.notifier.RunChanged(ctx, updated)
	return updated, nil
}

// classifyUnavailableToken re-reads a token whose conditional consume matched no
// rows to report why.
func (s *RunService) classifyUnavailableToken(ctx context.Context, nonce string, now time.Time) error {
	tok, err := s.repo.GetProofTokenByNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrTokenNotFound
		}
		return fmt.Errorf("failed to re-read proof token: %w", err)
	}
	if err := verify.CheckRecord(tok, now); err != nil {
		return err
	}
	return apperr.ErrTokenConsumed
}

func (s *RunService) VerifySocialProof(ctx context.Context, runID uuid.UUID, userID int64, proof model.SocialProof) (*model.MissionRun, error) {
	run, mission, now, err := s.loadForStep(ctx, runID, userID, model.StepSocial)
	if err != nil {
		return nil, err
	}

	if err := s.verifiers.Social.Verify(proof, mission.ID); err != nil {
		s.logRejection(run, model.StepSocial, err)
		return nil, err
	}

	next := s.advance(run, mission, model.StepSocial, now)
	postURL := proof.PostURL
	next.SocialPostURL = &postURL
	return s.swap(ctx, run, next)
}

func (s *RunService) GetStatus(ctx context.Context, runID uuid.UUID, requesterID int64) (*model.MissionRun, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.UserID != requesterID {
		return nil, apperr.ErrNotFound
	}
	return run, nil
}

func (s *RunService) ListByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error) {
	runs, err := s.repo.ListRunsByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Expire moves a single run past its deadline to expired.
func (s *RunService) Expire(ctx context.Context, runID uuid.UUID) (*model.MissionRun, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return s.expire(ctx, run, s.now().UTC())
}

// ExpireStale expires up to limit overdue runs and reports how many moved.
func (s *RunService) ExpireStale(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	runs, err := s.repo.ListExpiredRuns(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired runs: %w", err)
	}

	expired := 0
	for _, run := range runs {
		if _, err := s.expire(ctx, run, now); err != nil {
			if !errors.Is(err, apperr.ErrInvalidState) {
				logger.Logger().Error("failed to expire run",
					zap.String("run_id", run.ID.String()), zap.Error(err))
			}
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *RunService) expire(ctx context.Context, run *model.MissionRun, now time.Time) (*model.MissionRun, error) {
	if !run.IsExpired(now) {
		return nil, apperr.ErrInvalidState
	}
	next := run.Clone()
	next.Status = model.RunExpired
	next.ActiveLockKey = nil
	return s.swap(ctx, run, next)
}

func (s *RunService) activeMission(ctx context.Context, missionID uuid.UUID) (*model.Mission, error) {
	mission, err := s.catalog.GetMission(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotFound.WithMessage("mission not found")
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	if mission.Status != model.MissionActive {
		return nil, apperr.ErrNotFound.WithMessage("mission not found")
	}
	return mission, nil
}

// loadForStep applies the checks shared by every verification step, in order:
// rate limit, ownership, expiry, exact predecessor state.
func (s *RunService) loadForStep(ctx context.Context, runID uuid.UUID, userID int64, step model.Step) (*model.MissionRun, *model.Mission, time.Time, error) {
	if err := s.checkRateLimit(ctx, step, userID); err != nil {
		return nil, nil, time.Time{}, err
	}

	run, err := s.GetStatus(ctx, runID, userID)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	now := s.now().UTC()
	if run.IsExpired(now) {
		return nil, nil, time.Time{}, apperr.ErrRunExpired
	}
	if run.Status != model.PendingStatus(step) {
		return nil, nil, time.Time{}, apperr.ErrInvalidState.WithDetails(string(run.Status))
	}

	mission, err := s.catalog.GetMission(ctx, run.MissionID)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("failed to get mission: %w", err)
	}
	return run, mission, now, nil
}

func (s *RunService) checkRateLimit(ctx context.Context, step model.Step, userID int64) error {
	if s.limiter == nil {
		return nil
	}
	key := fmt.Sprintf("verify:%s:%d", step, userID)
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		logger.Logger().Warn("rate limiter unavailable, allowing request",
			zap.String("key", key), zap.Error(err))
		return nil
	}
	if !allowed {
		return apperr.ErrRateLimited
	}
	return nil
}

func (s *RunService) advance(run *model.MissionRun, mission *model.Mission, step model.Step, now time.Time) *model.MissionRun {
	next := run.Clone()
	at := now
	switch step {
	case model.StepLocation:
		next.GpsVerifiedAt = &at
	case model.StepCode:
		next.CodeVerifiedAt = &at
	case model.StepSocial:
		next.SocialVerifiedAt = &at
	}
	next.Status = model.NextStatus(mission, &step)
	return next
}

func (s *RunService) swap(ctx context.Context, prev, next *model.MissionRun) (*model.MissionRun, error) {
	updated, err := s.repo.CompareAndSwapRun(ctx, next)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, apperr.ErrInvalidState
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.ErrNotFound
		default:
			return nil, fmt.Errorf("failed to update run: %w", err)
		}
	}
	s.logTransition(prev, updated)
	s.notifier.RunChanged(ctx, updated)
	return updated, nil
}

func (s *RunService) logTransition(prev, next *model.MissionRun) {
	logger.Logger().Info("run transitioned",
		zap.String("run_id", next.ID.String()),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(next.Status)),
		zap.Int64("version", next.Version))
}

func (s *RunService) logRejection(run *model.MissionRun, step model.Step, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("run_id", run.ID.String()),
		zap.String("step", string(step)),
		zap.String("reason", apperr.From(err).Code))
	logger.Logger().Info("verification rejected", fields...)
}
