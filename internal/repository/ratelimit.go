package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// RateLimiter is a fixed-window counter kept in postgres so every instance
// shares the same budget per key.
type RateLimiter struct {
	db     *sqlx.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(db *sqlx.DB, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		db:     db,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    time.Now,
	}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := l.now().UTC().Truncate(l.window)

	query, args, err := squirrel.
		Insert("rate_limit_counters").
		Columns("key", "window_start", "count").
		Values(key, windowStart, 1).
		Suffix("ON CONFLICT (key, window_start) DO UPDATE SET count = rate_limit_counters.count + 1 RETURNING count").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build rate limit query: %w", err)
	}

	var count int
	if err := l.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count <= l.limit, nil
}

// Purge drops counters for windows that closed before the given time.
func (l *RateLimiter) Purge(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := squirrel.
		Delete("rate_limit_counters").
		Where(squirrel.Lt{"window_start": before.Add(-l.window)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build purge query: %w", err)
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit counters: %w", err)
	}
	return result.RowsAffected()
}
