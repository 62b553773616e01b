package scheduler

import (
	"context"
	"fmt"
	"time"

	"mission_rewards/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type Config struct {
	ExpireInterval     time.Duration `mapstructure:"expireInterval"`
	ExpireBatch        int           `mapstructure:"expireBatch"`
	PurgeInterval      time.Duration `mapstructure:"purgeInterval"`
	RateLimitRetention time.Duration `mapstructure:"rateLimitRetention"`
}

const (
	JobExpireStaleRuns = "expire-stale-runs"
	JobPurgeRateLimits = "purge-rate-limits"
)

type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs background maintenance: expiring overdue runs and dropping old
// rate limit windows.
type Scheduler struct {
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, expirer Expirer, purger Purger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, ctx: ctx, cancel: cancel}

	if expirer != nil && cfg.ExpireInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.ExpireInterval),
			gocron.NewTask(func() {
				n, err := expirer.ExpireStale(s.ctx, cfg.ExpireBatch)
				if err != nil {
					logger.Logger().Error("[Scheduler] failed to expire runs", zap.Error(err))
					return
				}
				if n > 0 {
					logger.Logger().Info("[Scheduler] expired runs", zap.Int("count", n))
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName(JobExpireStaleRuns),
		)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule run expiry: %w", err)
		}
	}

	if purger != nil && cfg.PurgeInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.PurgeInterval),
			gocron.NewTask(func() {
				n, err := purger.Purge(s.ctx, time.Now().Add(-cfg.RateLimitRetention))
				if err != nil {
					logger.Logger().Error("[Scheduler] failed to purge rate limit windows", zap.Error(err))
					return
				}
				logger.Logger().Debug("[Scheduler] purged rate limit windows", zap.Int64("count", n))
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName(JobPurgeRateLimits),
		)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule rate limit purge: %w", err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Jobs() int {
	return len(s.sched.Jobs())
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.sched.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}
