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
	"github.com/lib/pq"
)

func (r *Repository) GetReviewerRole(ctx context.Context, reviewerID int64) (model.Role, error) {
	query, args, err := squirrel.
		Select("role").
		From("reviewers").
		Where(squirrel.Eq{"reviewer_id": reviewerID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build reviewer query: %w", err)
	}

	var role string
	if err := r.db.GetContext(ctx, &role, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get reviewer role: %w", err)
	}
	return model.Role(role), nil
}

// HasPermission resolves the reviewer's role and checks it against the static
// role table. Unknown reviewers have no permissions.
func (r *Repository) HasPermission(ctx context.Context, reviewerID int64, perm model.Permission) (bool, error) {
	role, err := r.GetReviewerRole(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return role.Grants(perm), nil
}

func (r *Repository) UpsertReviewer(ctx context.Context, reviewerID int64, role model.Role) error {
	query, args, err := squirrel.
		Insert("reviewers").
		Columns("reviewer_id", "role", "created_at").
		Values(reviewerID, string(role), time.Now().UTC()).
		Suffix("ON CONFLICT (reviewer_id) DO UPDATE SET role = EXCLUDED.role").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build reviewer upsert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert reviewer: %w", err)
	}
	return nil
}

func (r *Repository) Record(ctx context.Context, entry *model.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	runID := uuid.NullUUID{UUID: entry.RunID, Valid: entry.RunID != uuid.Nil}
	details := pq.StringArray(entry.Details)
	if details == nil {
		details = pq.StringArray{}
	}

	query, args, err := squirrel.
		Insert("audit_log").
		SetMap(map[string]interface{}{
			"id":         entry.ID,
			"actor_id":   entry.ActorID,
			"action":     entry.Action,
			"run_id":     runID,
			"outcome":    entry.Outcome,
			"details":    details,
			"created_at": entry.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
