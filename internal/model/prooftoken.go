package model

import (
	"time"

	"github.com/google/uuid"
)

type ProofToken struct {
	ID              uuid.UUID
	MissionID       uuid.UUID
	PlaceID         uuid.UUID
	Nonce           string
	ExpiresAt       time.Time
	ConsumedAt      *time.Time
	ConsumedByRunID *uuid.UUID
	CreatedAt       time.Time
}

// IssuedToken is what issuance hands back: the stored record plus its wire form.
type IssuedToken struct {
	Token *ProofToken
	Raw   string
}
