package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func stepPtr(s Step) *Step { return &s }

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name     string
		steps    []Step
		after    *Step
		expected RunStatus
	}{
		{name: "all steps initial", steps: StepOrder, after: nil, expected: RunPendingLocation},
		{name: "all steps after location", steps: StepOrder, after: stepPtr(StepLocation), expected: RunPendingCode},
		{name: "all steps after code", steps: StepOrder, after: stepPtr(StepCode), expected: RunPendingSocial},
		{name: "all steps after social", steps: StepOrder, after: stepPtr(StepSocial), expected: RunPendingReview},
		{name: "code only initial", steps: []Step{StepCode}, after: nil, expected: RunPendingCode},
		{name: "location and social skip code", steps: []Step{StepLocation, StepSocial}, after: stepPtr(StepLocation), expected: RunPendingSocial},
		{name: "no steps", steps: nil, after: nil, expected: RunPendingReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mission{RequiredSteps: tt.steps}
			assert.Equal(t, tt.expected, NextStatus(m, tt.after))
		})
	}
}

func TestMissionRun_IsExpired(t *testing.T) {
	now := time.Now()
	run := &MissionRun{Status: RunPendingCode, ExpiresAt: now.Add(-time.Second)}
	assert.True(t, run.IsExpired(now))

	run.ExpiresAt = now.Add(time.Minute)
	assert.False(t, run.IsExpired(now))

	run.Status = RunApproved
	run.ExpiresAt = now.Add(-time.Hour)
	assert.False(t, run.IsExpired(now))
}

func TestRole_Grants(t *testing.T) {
	assert.True(t, RoleReviewer.Grants(PermRunsApprove))
	assert.False(t, RoleReviewer.Grants(PermCodesIssue))
	assert.False(t, RoleViewer.Grants(PermRunsReject))
	assert.True(t, RoleAdmin.Grants(PermCodesIssue))
	assert.False(t, Role("ghost").Grants(PermRunsRead))
}

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("3f1c2a4e-8a7b-4c1d-9e2f-0a1b2c3d4e5f")
	assert.Equal(t, "42:3f1c2a4e-8a7b-4c1d-9e2f-0a1b2c3d4e5f", LockKey(42, id))
}
