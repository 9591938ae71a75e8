package sweeper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"github.com/blockpress/internal/metrics"
	"github.com/blockpress/internal/scheduler"
	"github.com/blockpress/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSweeperTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := db.SQLiteDSN(fmt.Sprintf("file:sweeper-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	gdb, err := db.Open(db.Options{DSN: dsn, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

type fixture struct {
	gdb   *gorm.DB
	posts *service.PostService
	admin db.User
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := setupSweeperTestDB(t)
	admin := db.User{Username: "admin", Password: "x", IsAdmin: true}
	if err := gdb.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	posts := service.NewPostService(gdb, service.NewVersionStore(gdb)).
		WithClock(func() time.Time { return now })
	return &fixture{gdb: gdb, posts: posts, admin: admin, now: now}
}

func (f *fixture) schedule(t *testing.T, title string, at time.Time) *db.Post {
	t.Helper()
	post, err := f.posts.Create(context.Background(), f.admin.ID, content.PostFields{
		Title:     title,
		Excerpt:   "excerpt",
		Tags:      content.Tags{"news"},
		Content:   content.Blocks{content.TextBlock{Content: "body", Format: content.FormatPlain}},
		PublishAt: &at,
	})
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return post
}

func TestSweepPromotesOnlyDuePosts(t *testing.T) {
	f := newFixture(t)
	due := f.schedule(t, "due", f.now.Add(time.Minute))
	future := f.schedule(t, "future", f.now.Add(time.Hour))

	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	sweepAt := f.now.Add(6 * time.Minute)
	s := New(f.posts, zap.New(core), m).WithClock(func() time.Time { return sweepAt })

	ids, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(ids) != 1 || ids[0] != due.ID {
		t.Fatalf("expected [%d], got %v", due.ID, ids)
	}

	var promoted, pending db.Post
	f.gdb.First(&promoted, due.ID)
	f.gdb.First(&pending, future.ID)
	if promoted.State() != db.StatePublished || pending.State() != db.StateScheduled {
		t.Fatalf("unexpected states %s / %s", promoted.State(), pending.State())
	}

	if got := testutil.ToFloat64(m.PostsPromoted); got != 1 {
		t.Fatalf("expected promoted metric 1, got %v", got)
	}
	if logs.FilterMessage("scheduled posts published").Len() != 1 {
		t.Fatalf("expected a promotion log entry, got %v", logs.All())
	}

	// 再次执行不会产生变化
	ids, err = s.Sweep(context.Background())
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected idempotent second sweep, got %v %v", ids, err)
	}
	if got := testutil.ToFloat64(m.PostsPromoted); got != 1 {
		t.Fatalf("expected promoted metric to stay 1, got %v", got)
	}
}

func TestEditAfterSweepUnpublishesAgain(t *testing.T) {
	f := newFixture(t)
	post := f.schedule(t, "racy", f.now.Add(time.Minute))
	s := New(f.posts, nil, nil).WithClock(func() time.Time { return f.now.Add(time.Hour) })

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	edited, err := f.posts.Edit(context.Background(), post.ID, f.admin.ID, content.PostFields{
		Title:   "racy, revised",
		Excerpt: "excerpt",
		Tags:    content.Tags{"news"},
	}, "")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.State() != db.StateDraft {
		t.Fatalf("expected edit to win over an earlier sweep, got %s", edited.State())
	}

	ids, err := s.Sweep(context.Background())
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected the edited draft to stay unpublished, got %v %v", ids, err)
	}
}

type failingPromoter struct{}

func (failingPromoter) PromoteDue(context.Context, time.Time) ([]uint, error) {
	return nil, errors.New("database is locked")
}

func TestSweepFailureIsLoggedAndCounted(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	s := New(failingPromoter{}, zap.New(core), m)

	if _, err := s.Sweep(context.Background()); err == nil {
		t.Fatalf("expected sweep error")
	}
	if got := testutil.ToFloat64(m.SweepErrors); got != 1 {
		t.Fatalf("expected sweep error metric 1, got %v", got)
	}
	if logs.FilterMessage("publish sweep failed").Len() != 1 {
		t.Fatalf("expected failure to be logged")
	}
}

func TestJobRunsThroughScheduler(t *testing.T) {
	f := newFixture(t)
	due := f.schedule(t, "due", f.now.Add(time.Minute))
	s := New(f.posts, nil, nil).WithClock(func() time.Time { return f.now.Add(time.Hour) })

	sched := scheduler.New()
	if err := sched.Register(s.Job(time.Hour)); err != nil {
		t.Fatalf("register: %v", err)
	}
	sched.Start(context.Background())
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, _ := sched.Get(JobName); info.Runs > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	var p db.Post
	if err := f.gdb.First(&p, due.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if p.IsDraft {
		t.Fatalf("expected the start-up sweep to publish post %d", due.ID)
	}
}

// slowPromoter delays the real promotion so shutdown can land mid-run.
type slowPromoter struct {
	next    Promoter
	started chan struct{}
}

func (p slowPromoter) PromoteDue(ctx context.Context, now time.Time) ([]uint, error) {
	close(p.started)
	time.Sleep(150 * time.Millisecond)
	return p.next.PromoteDue(ctx, now)
}

func TestShutdownLetsRunningSweepFinish(t *testing.T) {
	f := newFixture(t)
	due := f.schedule(t, "due", f.now.Add(time.Minute))
	promoter := slowPromoter{next: f.posts, started: make(chan struct{})}
	s := New(promoter, nil, nil).WithClock(func() time.Time { return f.now.Add(time.Hour) })

	sched := scheduler.New()
	if err := sched.Register(s.Job(time.Hour)); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	<-promoter.started
	cancel()
	sched.Stop()

	info, err := sched.Get(JobName)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if info.Status != scheduler.StatusSucceeded {
		t.Fatalf("expected sweep to finish during shutdown, got %s: %s", info.Status, info.Message)
	}
	var p db.Post
	if err := f.gdb.First(&p, due.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if p.IsDraft {
		t.Fatalf("expected post %d to be published by the in-flight sweep", due.ID)
	}
}
