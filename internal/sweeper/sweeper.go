package sweeper

import (
	"context"
	"time"

	"github.com/blockpress/internal/metrics"
	"github.com/blockpress/internal/scheduler"
	"go.uber.org/zap"
)

// JobName is the scheduler name of the publish sweep.
const JobName = "publish_scheduled_posts"

// Promoter publishes scheduled posts that are due at now.
type Promoter interface {
	PromoteDue(ctx context.Context, now time.Time) ([]uint, error)
}

// Sweeper promotes scheduled posts once their publish time has passed.
type Sweeper struct {
	posts   Promoter
	log     *zap.Logger
	metrics *metrics.Collectors
	now     func() time.Time
}

// New creates a Sweeper. log and m may be nil.
func New(posts Promoter, log *zap.Logger, m *metrics.Collectors) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{posts: posts, log: log.Named("sweeper"), metrics: m, now: time.Now}
}

// WithClock overrides the time source, mainly for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Sweep promotes every due post and returns the promoted ids.
func (s *Sweeper) Sweep(ctx context.Context) ([]uint, error) {
	started := time.Now()
	ids, err := s.posts.PromoteDue(ctx, s.now())
	s.metrics.ObserveSweep(started, len(ids), err)
	if err != nil {
		s.log.Error("publish sweep failed", zap.Error(err))
		return nil, err
	}
	if len(ids) > 0 {
		s.log.Info("scheduled posts published", zap.Int("count", len(ids)), zap.Uints("post_ids", ids))
	} else {
		s.log.Debug("no scheduled posts due")
	}
	return ids, nil
}

// Job wraps Sweep for the scheduler. Failures are logged and retried on the next tick.
func (s *Sweeper) Job(interval time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:        JobName,
		Description: "publish scheduled posts whose publish time has passed",
		Interval:    interval,
		RunOnStart:  true,
		Fn: func(ctx context.Context) error {
			_, err := s.Sweep(ctx)
			return err
		},
	}
}
