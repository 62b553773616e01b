package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mission_rewards/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type proofToken struct {
	ID              uuid.UUID     `db:"id"`
	MissionID       uuid.UUID     `db:"mission_id"`
	PlaceID         uuid.UUID     `db:"place_id"`
	Nonce           string        `db:"nonce"`
	ExpiresAt       time.Time     `db:"expires_at"`
	ConsumedAt      *time.Time    `db:"consumed_at"`
	ConsumedByRunID uuid.NullUUID `db:"consumed_by_run_id"`
	CreatedAt       time.Time     `db:"created_at"`
}

func (t *proofToken) toModel() *model.ProofToken {
	tok := &model.ProofToken{
		ID:         t.ID,
		MissionID:  t.MissionID,
		PlaceID:    t.PlaceID,
		Nonce:      t.Nonce,
		ExpiresAt:  t.ExpiresAt,
		ConsumedAt: t.ConsumedAt,
		CreatedAt:  t.CreatedAt,
	}
	if t.ConsumedByRunID.Valid {
		runID := t.ConsumedByRunID.UUID
		tok.ConsumedByRunID = &runID
	}
	return tok
}

func (r *Repository) CreateProofToken(ctx context.Context, tok *model.ProofToken) error {
	query, args, err := squirrel.
		Insert("proof_tokens").
		SetMap(map[string]interface{}{
			"id":         tok.ID,
			"mission_id": tok.MissionID,
			"place_id":   tok.PlaceID,
			"nonce":      tok.Nonce,
			"expires_at": tok.ExpiresAt,
			"created_at": tok.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build token insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert proof token: %w", err)
	}
	return nil
}

func (r *Repository) GetProofTokenByNonce(ctx context.Context, nonce string) (*model.ProofToken, error) {
	query, args, err := squirrel.
		Select("id", "mission_id", "place_id", "nonce", "expires_at", "consumed_at", "consumed_by_run_id", "created_at").
		From("proof_tokens").
		Where(squirrel.Eq{"nonce": nonce}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build token query: %w", err)
	}

	var t proofToken
	if err := r.db.GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get proof token: %w", err)
	}
	return t.toModel(), nil
}

// ConsumeTokenAndSwapRun marks the token consumed and applies the run transition in
// one transaction. ErrTokenUnavailable means the token was consumed or expired
// concurrently; ErrVersionConflict means the run moved.
func (r *Repository) ConsumeTokenAndSwapRun(ctx context.Context, tokenID uuid.UUID, run *model.MissionRun, now time.Time) (*model.MissionRun, error) {
	var updated *model.MissionRun
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("proof_tokens").
			Set("consumed_at", now).
			Set("consumed_by_run_id", run.ID).
			Where(squirrel.And{
				squirrel.Eq{"id": tokenID, "consumed_at": nil},
				squirrel.Gt{"expires_at": now},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build token consume query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to consume proof token: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return ErrTokenUnavailable
		}

		updated, err = r.compareAndSwapRun(ctx, tx, run)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
