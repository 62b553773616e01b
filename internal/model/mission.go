package model

import (
	"time"

	"github.com/google/uuid"
)

// Step is one proof-of-presence check. Steps always run in StepOrder.
type Step string

const (
	StepLocation Step = "location"
	StepCode     Step = "code"
	StepSocial   Step = "social"
)

var StepOrder = []Step{StepLocation, StepCode, StepSocial}

func (s Step) Valid() bool {
	switch s {
	case StepLocation, StepCode, StepSocial:
		return true
	}
	return false
}

type MissionStatus string

const (
	MissionActive   MissionStatus = "active"
	MissionArchived MissionStatus = "archived"
)

type Mission struct {
	ID            uuid.UUID
	PlaceID       uuid.UUID
	Title         string
	RewardAmount  int64
	RequiredSteps []Step
	Status        MissionStatus
	CreatedAt     time.Time
}

func (m *Mission) Requires(step Step) bool {
	for _, s := range m.RequiredSteps {
		if s == step {
			return true
		}
	}
	return false
}

type Place struct {
	ID        uuid.UUID
	Name      string
	Latitude  float64
	Longitude float64
}
