package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is used when no ledger currency is configured.
const DefaultCurrency = "PTS"

type Wallet struct {
	UserID        int64
	Balance       int64
	LockedBalance int64
	Currency      string
	Version       int64
	UpdatedAt     time.Time
}

type TransactionType string

const (
	TransactionReward TransactionType = "reward"
)

type TransactionStatus string

const (
	TransactionApplied TransactionStatus = "applied"
)

const RefTypeMissionRun = "mission_run"

type WalletTransaction struct {
	ID             uuid.UUID
	UserID         int64
	Type           TransactionType
	Status         TransactionStatus
	Amount         int64
	BalanceBefore  int64
	BalanceAfter   int64
	Currency       string
	RefType        string
	RefID          uuid.UUID
	IdempotencyKey string
	CreatedAt      time.Time
}

// IdempotencyRecord maps a caller-supplied key to the outcome of a reward operation.
type IdempotencyRecord struct {
	Key           string
	RunID         uuid.UUID
	TransactionID uuid.UUID
	CreatedAt     time.Time
}

// RewardOutcome is the result of an approval.
type RewardOutcome struct {
	Run         *MissionRun
	Transaction *WalletTransaction
}
