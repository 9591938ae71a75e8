package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blockpress/internal/db"
)

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) FirstView(_ context.Context, postID uint, visitorID string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := fmt.Sprintf("%s/%d", visitorID, postID)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func TestAnalyticsService_IncrementsCounters(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Counted")
	svc := NewAnalyticsService(gdb)
	ctx := context.Background()

	var before db.Post
	gdb.First(&before, post.ID)

	for i := 0; i < 3; i++ {
		if err := svc.IncrementViews(ctx, post.ID); err != nil {
			t.Fatalf("increment views: %v", err)
		}
	}
	if err := svc.IncrementShareCount(ctx, post.ID); err != nil {
		t.Fatalf("increment shares: %v", err)
	}

	var after db.Post
	gdb.First(&after, post.ID)
	if after.Views != 3 || after.ShareCount != 1 {
		t.Fatalf("expected views=3 shares=1, got views=%d shares=%d", after.Views, after.ShareCount)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("counters must not touch updated_at")
	}

	if err := svc.IncrementViews(ctx, 9999); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestAnalyticsService_RecordViewDeduplicates(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Deduped")
	svc := NewAnalyticsService(gdb).WithDeduper(&fakeDeduper{seen: map[string]bool{}})
	ctx := context.Background()

	counted, err := svc.RecordView(ctx, post.ID, "visitor-a")
	if err != nil || !counted {
		t.Fatalf("expected first view to count, got %v %v", counted, err)
	}
	counted, err = svc.RecordView(ctx, post.ID, "visitor-a")
	if err != nil || counted {
		t.Fatalf("expected repeat view to be skipped, got %v %v", counted, err)
	}
	if _, err := svc.RecordView(ctx, post.ID, "visitor-b"); err != nil {
		t.Fatalf("second visitor: %v", err)
	}

	var stored db.Post
	gdb.First(&stored, post.ID)
	if stored.Views != 2 {
		t.Fatalf("expected 2 views, got %d", stored.Views)
	}
}

func TestAnalyticsService_RecordViewCountsWhenDedupFails(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Fallback")
	svc := NewAnalyticsService(gdb).WithDeduper(&fakeDeduper{err: errors.New("redis down")})

	counted, err := svc.RecordView(context.Background(), post.ID, "visitor")
	if err != nil || !counted {
		t.Fatalf("expected view to count when dedup is unavailable, got %v %v", counted, err)
	}
}
