package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunPendingLocation RunStatus = "pending_location"
	RunPendingCode     RunStatus = "pending_code"
	RunPendingSocial   RunStatus = "pending_social"
	RunPendingReview   RunStatus = "pending_review"
	RunApproved        RunStatus = "approved"
	RunRejected        RunStatus = "rejected"
	RunExpired         RunStatus = "expired"
)

func (s RunStatus) Terminal() bool {
	return s == RunApproved || s == RunRejected || s == RunExpired
}

// PendingStatus is the state a run waits in before the given step is verified.
func PendingStatus(step Step) RunStatus {
	switch step {
	case StepLocation:
		return RunPendingLocation
	case StepCode:
		return RunPendingCode
	case StepSocial:
		return RunPendingSocial
	}
	return RunPendingReview
}

// NextStatus returns the state following the given step for a mission, skipping
// steps the mission does not require. A nil step yields the initial state.
func NextStatus(m *Mission, after *Step) RunStatus {
	passed := after == nil
	for _, s := range StepOrder {
		if !passed {
			if s == *after {
				passed = true
			}
			continue
		}
		if m.Requires(s) {
			return PendingStatus(s)
		}
	}
	return RunPendingReview
}

type MissionRun struct {
	ID                     uuid.UUID
	UserID                 int64
	MissionID              uuid.UUID
	Status                 RunStatus
	GpsVerifiedAt          *time.Time
	CodeVerifiedAt         *time.Time
	SocialVerifiedAt       *time.Time
	ReviewedAt             *time.Time
	ReviewedBy             *int64
	RejectedAt             *time.Time
	RejectReason           *string
	ExpiresAt              time.Time
	RewardAmount           int64
	RewardedAt             *time.Time
	ActiveLockKey          *string
	LocationDistanceMeters *float64
	SocialPostURL          *string
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func LockKey(userID int64, missionID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", userID, missionID)
}

// IsExpired reports whether a non-terminal run is past its deadline.
func (r *MissionRun) IsExpired(now time.Time) bool {
	return !r.Status.Terminal() && now.After(r.ExpiresAt)
}

func (r *MissionRun) Clone() *MissionRun {
	cp := *r
	return &cp
}
