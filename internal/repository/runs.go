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

const activeLockConstraint = "mission_runs_active_lock_key"

type missionRun struct {
	ID                     uuid.UUID  `db:"id"`
	UserID                 int64      `db:"user_id"`
	MissionID              uuid.UUID  `db:"mission_id"`
	Status                 string     `db:"status"`
	GpsVerifiedAt          *time.Time `db:"gps_verified_at"`
	CodeVerifiedAt         *time.Time `db:"code_verified_at"`
	SocialVerifiedAt       *time.Time `db:"social_verified_at"`
	ReviewedAt             *time.Time `db:"reviewed_at"`
	ReviewedBy             *int64     `db:"reviewed_by"`
	RejectedAt             *time.Time `db:"rejected_at"`
	RejectReason           *string    `db:"reject_reason"`
	ExpiresAt              time.Time  `db:"expires_at"`
	RewardAmount           int64      `db:"reward_amount"`
	RewardedAt             *time.Time `db:"rewarded_at"`
	ActiveLockKey          *string    `db:"active_lock_key"`
	LocationDistanceMeters *float64   `db:"location_distance_meters"`
	SocialPostURL          *string    `db:"social_post_url"`
	Version                int64      `db:"version"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

var runColumns = []string{
	"id", "user_id", "mission_id", "status",
	"gps_verified_at", "code_verified_at", "social_verified_at",
	"reviewed_at", "reviewed_by", "rejected_at", "reject_reason",
	"expires_at", "reward_amount", "rewarded_at", "active_lock_key",
	"location_distance_meters", "social_post_url",
	"version", "created_at", "updated_at",
}

func (r *missionRun) toModel() *model.MissionRun {
	return &model.MissionRun{
		ID:                     r.ID,
		UserID:                 r.UserID,
		MissionID:              r.MissionID,
		Status:                 model.RunStatus(r.Status),
		GpsVerifiedAt:          r.GpsVerifiedAt,
		CodeVerifiedAt:         r.CodeVerifiedAt,
		SocialVerifiedAt:       r.SocialVerifiedAt,
		ReviewedAt:             r.ReviewedAt,
		ReviewedBy:             r.ReviewedBy,
		RejectedAt:             r.RejectedAt,
		RejectReason:           r.RejectReason,
		ExpiresAt:              r.ExpiresAt,
		RewardAmount:           r.RewardAmount,
		RewardedAt:             r.RewardedAt,
		ActiveLockKey:          r.ActiveLockKey,
		LocationDistanceMeters: r.LocationDistanceMeters,
		SocialPostURL:          r.SocialPostURL,
		Version:                r.Version,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// mutableRunFields are the columns a transition may change.
func mutableRunFields(run *model.MissionRun) map[string]interface{} {
	return map[string]interface{}{
		"status":                   string(run.Status),
		"gps_verified_at":          run.GpsVerifiedAt,
		"code_verified_at":         run.CodeVerifiedAt,
		"social_verified_at":       run.SocialVerifiedAt,
		"reviewed_at":              run.ReviewedAt,
		"reviewed_by":              run.ReviewedBy,
		"rejected_at":              run.RejectedAt,
		"reject_reason":            run.RejectReason,
		"rewarded_at":              run.RewardedAt,
		"active_lock_key":          run.ActiveLockKey,
		"location_distance_meters": run.LocationDistanceMeters,
		"social_post_url":          run.SocialPostURL,
	}
}

func (r *Repository) CreateRun(ctx context.Context, run *model.MissionRun) error {
	fields := mutableRunFields(run)
	fields["id"] = run.ID
	fields["user_id"] = run.UserID
	fields["mission_id"] = run.MissionID
	fields["expires_at"] = run.ExpiresAt
	fields["reward_amount"] = run.RewardAmount
	fields["version"] = run.Version
	fields["created_at"] = run.CreatedAt
	fields["updated_at"] = run.UpdatedAt

	query, args, err := squirrel.
		Insert("mission_runs").
		SetMap(fields).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build run insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, activeLockConstraint) {
			return ErrActiveRunExists
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*model.MissionRun, error) {
	return r.getRun(ctx, r.db, squirrel.Eq{"id": id})
}

// GetActiveRun returns the run holding the given attempt lock.
func (r *Repository) GetActiveRun(ctx context.Context, lockKey string) (*model.MissionRun, error) {
	return r.getRun(ctx, r.db, squirrel.Eq{"active_lock_key": lockKey})
}

func (r *Repository) getRun(ctx context.Context, q sqlx.QueryerContext, where squirrel.Sqlizer) (*model.MissionRun, error) {
	query, args, err := squirrel.
		Select(runColumns...).
		From("mission_runs").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}

	var row missionRun
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toModel(), nil
}

func (r *Repository) HasApprovedRun(ctx context.Context, userID int64, missionID uuid.UUID) (bool, error) {
	query, args, err := squirrel.
		Select("count(*)").
		From("mission_runs").
		Where(squirrel.Eq{
			"user_id":    userID,
			"mission_id": missionID,
			"status":     string(model.RunApproved),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build approved run query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to count approved runs: %w", err)
	}
	return count > 0, nil
}

// CompareAndSwapRun writes run if the stored version still equals run.Version and
// returns the stored result with the incremented version.
func (r *Repository) CompareAndSwapRun(ctx context.Context, run *model.MissionRun) (*model.MissionRun, error) {
	return r.compareAndSwapRun(ctx, r.db, run)
}

func (r *Repository) compareAndSwapRun(ctx context.Context, q sqlx.ExtContext, run *model.MissionRun) (*model.MissionRun, error) {
	next := run.Clone()
	next.Version = run.Version + 1
	next.UpdatedAt = time.Now().UTC()

	fields := mutableRunFields(next)
	fields["version"] = next.Version
	fields["updated_at"] = next.UpdatedAt

	query, args, err := squirrel.
		Update("mission_runs").
		SetMap(fields).
		Where(squirrel.Eq{"id": run.ID, "version": run.Version}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run update query: %w", err)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err, activeLockConstraint) {
			return nil, ErrActiveRunExists
		}
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.getRun(ctx, q, squirrel.Eq{"id": run.ID}); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}

	return next, nil
}

func (r *Repository) ListRunsByStatus(ctx context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error) {
	return r.listRuns(ctx, squirrel.Eq{"status": string(status)}, "created_at", limit)
}

// ListExpiredRuns returns non-terminal runs whose deadline has passed.
func (r *Repository) ListExpiredRuns(ctx context.Context, now time.Time, limit int) ([]*model.MissionRun, error) {
	where := squirrel.And{
		squirrel.Eq{"status": []string{
			string(model.RunPendingLocation),
			string(model.RunPendingCode),
			string(model.RunPendingSocial),
			string(model.RunPendingReview),
		}},
		squirrel.Lt{"expires_at": now},
	}
	return r.listRuns(ctx, where, "expires_at", limit)
}

func (r *Repository) listRuns(ctx context.Context, where squirrel.Sqlizer, orderBy string, limit int) ([]*model.MissionRun, error) {
	query, args, err := squirrel.
		Select(runColumns...).
		From("mission_runs").
		Where(where).
		OrderBy(orderBy).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run list query: %w", err)
	}

	var rows []missionRun
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*model.MissionRun, len(rows))
	for i := range rows {
		runs[i] = rows[i].toModel()
	}
	return runs, nil
}
