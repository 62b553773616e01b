package service

import (
	"context"
	"testing"
	"time"

	"mission_rewards/internal/model"
	"mission_rewards/internal/verify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memStore
	runs    *RunService
	ledger  *RewardLedger
	issuer  *ProofTokenIssuer
	mission *model.Mission
	place   *model.Place
	now     time.Time
}

func newFixture(t *testing.T, steps ...model.Step) *fixture {
	t.Helper()
	if len(steps) == 0 {
		steps = []model.Step{model.StepLocation, model.StepCode, model.StepSocial}
	}

	store := newMemStore()
	place := &model.Place{ID: uuid.New(), Name: "City Hall", Latitude: 37.5665, Longitude: 126.9780}
	mission := &model.Mission{
		ID:            uuid.New(),
		PlaceID:       place.ID,
		Title:         "Visit City Hall",
		RewardAmount:  500,
		RequiredSteps: steps,
		Status:        model.MissionActive,
		CreatedAt:     fixedNow.Add(-time.Hour),
	}
	store.addMission(mission, place)

	signer := verify.NewSigner([]byte("test-secret"))
	f := &fixture{store: store, mission: mission, place: place, now: fixedNow}
	clock := func() time.Time { return f.now }

	f.runs = NewRunService(store, store, nil, Verifiers{
		Gps:    verify.NewGpsVerifier(verify.DefaultGpsConfig()),
		Code:   verify.NewCodeVerifier(signer),
		Social: verify.NewSocialProofVerifier(verify.DefaultSocialConfig()),
	}, time.Hour)
	f.runs.SetClock(clock)

	f.ledger = NewRewardLedger(store, 3, "")
	f.ledger.SetClock(clock)

	f.issuer = NewProofTokenIssuer(store, store, signer, time.Hour)
	f.issuer.SetClock(clock)
	return f
}

func (f *fixture) goodFix() model.LocationFix {
	return model.LocationFix{
		Latitude:   f.place.Latitude + 0.0002,
		Longitude:  f.place.Longitude,
		Accuracy:   15,
		CapturedAt: f.now.Add(-10 * time.Second),
		Provider:   "gps",
	}
}

func (f *fixture) goodProof() model.SocialProof {
	return model.SocialProof{
		Platform: "instagram",
		PostURL:  "https://www.instagram.com/reel/abc123/",
		Caption:  "Made it! #missionrun #" + f.mission.ID.String(),
	}
}

func (f *fixture) issueCode(t *testing.T) string {
	t.Helper()
	issued, err := f.issuer.Issue(context.Background(), f.mission.ID, 0)
	require.NoError(t, err)
	return issued.Raw
}

// runToReview drives a fresh run for userID through every step.
func (f *fixture) runToReview(t *testing.T, userID int64) *model.MissionRun {
	t.Helper()
	ctx := context.Background()
	run, err := f.runs.CreateRun(ctx, userID, f.mission.ID)
	require.NoError(t, err)
	run, err = f.runs.VerifyLocation(ctx, run.ID, userID, f.goodFix())
	require.NoError(t, err)
	run, err = f.runs.VerifyCode(ctx, run.ID, userID, f.issueCode(t))
	require.NoError(t, err)
	run, err = f.runs.VerifySocialProof(ctx, run.ID, userID, f.goodProof())
	require.NoError(t, err)
	require.Equal(t, model.RunPendingReview, run.Status)
	return run
}
