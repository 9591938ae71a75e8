package service

import (
	"context"
	"time"

	"github.com/blockpress/internal/db"
	"github.com/blockpress/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultViewDedupWindow = 30 * time.Minute

// ViewDeduper 判断访客在窗口期内是否首次浏览某篇文章。
type ViewDeduper interface {
	FirstView(ctx context.Context, postID uint, visitorID string, window time.Duration) (bool, error)
}

// AnalyticsService 负责文章浏览与分享计数。
type AnalyticsService struct {
	db          *gorm.DB
	dedup       ViewDeduper
	dedupWindow time.Duration
	metrics     *metrics.Collectors
	log         *zap.Logger
}

// NewAnalyticsService 创建 AnalyticsService，默认去重窗口为 30 分钟。
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb, dedupWindow: defaultViewDedupWindow, log: zap.NewNop()}
}

// WithDedupWindow 允许在测试或特定场景下调整去重窗口。
func (s *AnalyticsService) WithDedupWindow(d time.Duration) *AnalyticsService {
	if d <= 0 {
		return s
	}
	s.dedupWindow = d
	return s
}

// WithDeduper 启用访客去重；为 nil 时每次浏览都计数。
func (s *AnalyticsService) WithDeduper(d ViewDeduper) *AnalyticsService {
	s.dedup = d
	return s
}

// WithMetrics attaches failure counters.
func (s *AnalyticsService) WithMetrics(m *metrics.Collectors) *AnalyticsService {
	s.metrics = m
	return s
}

// WithLogger replaces the no-op logger.
func (s *AnalyticsService) WithLogger(log *zap.Logger) *AnalyticsService {
	if log != nil {
		s.log = log
	}
	return s
}

// IncrementViews 原子地将浏览数加一。
func (s *AnalyticsService) IncrementViews(ctx context.Context, postID uint) error {
	return s.increment(ctx, postID, "views")
}

// IncrementShareCount 原子地将分享数加一。
func (s *AnalyticsService) IncrementShareCount(ctx context.Context, postID uint) error {
	return s.increment(ctx, postID, "share_count")
}

// RecordView 在去重窗口内只为同一访客计一次浏览，返回本次是否计数。
// 去重存储不可用时退化为直接计数。
func (s *AnalyticsService) RecordView(ctx context.Context, postID uint, visitorID string) (bool, error) {
	if s.dedup != nil && visitorID != "" {
		first, err := s.dedup.FirstView(ctx, postID, visitorID, s.dedupWindow)
		if err != nil {
			s.log.Warn("view dedup unavailable", zap.Uint("post_id", postID), zap.Error(err))
		} else if !first {
			return false, nil
		}
	}
	if err := s.IncrementViews(ctx, postID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AnalyticsService) increment(ctx context.Context, postID uint, column string) error {
	// UpdateColumn 不会改动 updated_at
	res := s.db.WithContext(ctx).
		Model(&db.Post{}).
		Where("id = ?", postID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		s.metrics.CounterFailed(column)
		return storageErr("increment "+column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}
