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
	lru "github.com/hashicorp/golang-lru"
	"github.com/lib/pq"
)

type mission struct {
	ID            uuid.UUID      `db:"id"`
	PlaceID       uuid.UUID      `db:"place_id"`
	Title         string         `db:"title"`
	RewardAmount  int64          `db:"reward_amount"`
	RequiredSteps pq.StringArray `db:"required_steps"`
	Status        string         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
}

type place struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
}

func (r *Repository) GetMission(ctx context.Context, id uuid.UUID) (*model.Mission, error) {
	query, args, err := squirrel.
		Select("id", "place_id", "title", "reward_amount", "required_steps", "status", "created_at").
		From("missions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build mission query: %w", err)
	}

	var m mission
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	steps := make([]model.Step, 0, len(m.RequiredSteps))
	for _, s := range m.RequiredSteps {
		steps = append(steps, model.Step(s))
	}

	return &model.Mission{
		ID:            m.ID,
		PlaceID:       m.PlaceID,
		Title:         m.Title,
		RewardAmount:  m.RewardAmount,
		RequiredSteps: steps,
		Status:        model.MissionStatus(m.Status),
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (r *Repository) GetPlace(ctx context.Context, id uuid.UUID) (*model.Place, error) {
	query, args, err := squirrel.
		Select("id", "name", "latitude", "longitude").
		From("places").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build place query: %w", err)
	}

	var p place
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	return &model.Place{ID: p.ID, Name: p.Name, Latitude: p.Latitude, Longitude: p.Longitude}, nil
}

type CatalogSource interface {
	GetMission(ctx context.Context, id uuid.UUID) (*model.Mission, error)
	GetPlace(ctx context.Context, id uuid.UUID) (*model.Place, error)
}

type cacheEntry struct {
	value    interface{}
	cachedAt time.Time
}

// CachedCatalog is a read-through LRU cache over missions and places. Both are
// read-only to the verification flow, so entries only age out by TTL.
type CachedCatalog struct {
	source CatalogSource
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
}

func NewCachedCatalog(source CatalogSource, size int, ttl time.Duration) (*CachedCatalog, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}
	return &CachedCatalog{source: source, cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *CachedCatalog) lookup(key string) (interface{}, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.cachedAt) > c.ttl {
		c.cache.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *CachedCatalog) store(key string, value interface{}) {
	c.cache.Add(key, cacheEntry{value: value, cachedAt: c.now()})
}

func (c *CachedCatalog) GetMission(ctx context.Context, id uuid.UUID) (*model.Mission, error) {
	key := "mission:" + id.String()
	if v, ok := c.lookup(key); ok {
		return v.(*model.Mission), nil
	}
	m, err := c.source.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(key, m)
	return m, nil
}

func (c *CachedCatalog) GetPlace(ctx context.Context, id uuid.UUID) (*model.Place, error) {
	key := "place:" + id.String()
	if v, ok := c.lookup(key); ok {
		return v.(*model.Place), nil
	}
	p, err := c.source.GetPlace(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(key, p)
	return p, nil
}
