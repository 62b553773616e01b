package api

import (
	"time"

	"mission_rewards/internal/model"
)

type runResponse struct {
	RunID            string   `json:"run_id"`
	MissionID        string   `json:"mission_id"`
	UserID           int64    `json:"user_id"`
	Status           string   `json:"status"`
	RewardAmount     int64    `json:"reward_amount"`
	ExpiresAt        int64    `json:"expires_at"`
	GpsVerifiedAt    *int64   `json:"gps_verified_at"`
	CodeVerifiedAt   *int64   `json:"code_verified_at"`
	SocialVerifiedAt *int64   `json:"social_verified_at"`
	ReviewedAt       *int64   `json:"reviewed_at"`
	RejectedAt       *int64   `json:"rejected_at"`
	RejectReason     *string  `json:"reject_reason"`
	RewardedAt       *int64   `json:"rewarded_at"`
	DistanceMeters   *float64 `json:"distance_meters,omitempty"`
	SocialPostURL    *string  `json:"social_post_url,omitempty"`
	Version          int64    `json:"version"`
	CreatedAt        int64    `json:"created_at"`
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	unix := t.Unix()
	return &unix
}

func newRunResponse(run *model.MissionRun) runResponse {
	return runResponse{
		RunID:            run.ID.String(),
		MissionID:        run.MissionID.String(),
		UserID:           run.UserID,
		Status:           string(run.Status),
		RewardAmount:     run.RewardAmount,
		ExpiresAt:        run.ExpiresAt.Unix(),
		GpsVerifiedAt:    unixPtr(run.GpsVerifiedAt),
		CodeVerifiedAt:   unixPtr(run.CodeVerifiedAt),
		SocialVerifiedAt: unixPtr(run.SocialVerifiedAt),
		ReviewedAt:       unixPtr(run.ReviewedAt),
		RejectedAt:       unixPtr(run.RejectedAt),
		RejectReason:     run.RejectReason,
		RewardedAt:       unixPtr(run.RewardedAt),
		DistanceMeters:   run.LocationDistanceMeters,
		SocialPostURL:    run.SocialPostURL,
		Version:          run.Version,
		CreatedAt:        run.CreatedAt.Unix(),
	}
}

type transactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Currency      string `json:"currency"`
	RefType       string `json:"ref_type"`
	RefID         string `json:"ref_id"`
	CreatedAt     int64  `json:"created_at"`
}

func newTransactionResponse(t *model.WalletTransaction) transactionResponse {
	return transactionResponse{
		TransactionID: t.ID.String(),
		Type:          string(t.Type),
		Status:        string(t.Status),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Currency:      t.Currency,
		RefType:       t.RefType,
		RefID:         t.RefID.String(),
		CreatedAt:     t.CreatedAt.Unix(),
	}
}
