package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
)

func createTestPost(t *testing.T, svc *PostService, actorID uint, title string) *db.Post {
	t.Helper()
	post, err := svc.Create(context.Background(), actorID, sampleFields(title))
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

func TestVersionStore_SnapshotNumbersSequentially(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Numbered")

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewVersionStore(gdb).WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		fields := sampleFields("Title")
		version, err := store.Snapshot(ctx, post.ID, fields, admin.ID, "  note  ")
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		if version.Version != i {
			t.Fatalf("expected version %d, got %d", i, version.Version)
		}
		if version.Comment != "note" {
			t.Fatalf("expected trimmed comment, got %q", version.Comment)
		}
		if !version.CreatedAt.Equal(fixed) {
			t.Fatalf("expected injected timestamp, got %v", version.CreatedAt)
		}
	}

	versions, err := store.ListVersions(ctx, post.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if v.Version != 3-i {
			t.Fatalf("expected newest first, got %d at index %d", v.Version, i)
		}
	}

	loaded, err := store.GetVersion(ctx, versions[0].ID)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if len(loaded.Content) != 1 || loaded.Content[0].Kind() != content.KindText {
		t.Fatalf("expected stored content to round-trip, got %#v", loaded.Content)
	}
}

func TestVersionStore_SnapshotRejectsMissingReferences(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Refs")
	store := NewVersionStore(gdb)
	ctx := context.Background()

	if _, err := store.Snapshot(ctx, 9999, sampleFields("x"), admin.ID, ""); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := store.Snapshot(ctx, post.ID, sampleFields("x"), 9999, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	var count int64
	gdb.Model(&db.PostVersion{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no versions to be written, got %d", count)
	}
}

func TestVersionStore_LookupErrors(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := NewVersionStore(gdb)
	ctx := context.Background()

	if _, err := store.GetVersion(ctx, 42); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
	if _, err := store.ListVersions(ctx, 42); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestVersionStore_ConcurrentSnapshotsGetDistinctNumbers(t *testing.T) {
	gdb := setupFileTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	post := createTestPost(t, newTestPostService(gdb), admin.ID, "Busy")
	store := NewVersionStore(gdb)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Snapshot(context.Background(), post.ID, sampleFields("concurrent"), admin.ID, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent snapshot failed: %v", err)
	}

	var numbers []int
	if err := gdb.Model(&db.PostVersion{}).Where("post_id = ?", post.ID).Pluck("version", &numbers).Error; err != nil {
		t.Fatalf("load version numbers: %v", err)
	}
	sort.Ints(numbers)
	if len(numbers) != writers {
		t.Fatalf("expected %d versions, got %d", writers, len(numbers))
	}
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("expected contiguous numbers 1..%d, got %v", writers, numbers)
		}
	}
}

func TestPostService_ConcurrentEditsNumberVersionsContiguously(t *testing.T) {
	gdb := setupFileTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	svc := newTestPostService(gdb)
	post := createTestPost(t, svc, admin.ID, "Contended")

	const editors = 10
	var wg sync.WaitGroup
	errs := make(chan error, editors)
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fields := sampleFields(fmt.Sprintf("edit %d", i))
			if _, err := svc.Edit(context.Background(), post.ID, admin.ID, fields, ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent edit failed: %v", err)
	}

	versions, err := NewVersionStore(gdb).ListVersions(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != editors {
		t.Fatalf("expected %d versions, got %d", editors, len(versions))
	}
	for i, v := range versions {
		if want := editors - i; v.Version != want {
			t.Fatalf("expected version %d at position %d, got %d", want, i, v.Version)
		}
	}
	if versions[editors-1].Title != "Contended" {
		t.Fatalf("expected version 1 to hold the original title, got %q", versions[editors-1].Title)
	}

	var current db.Post
	if err := gdb.First(&current, post.ID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	if !current.IsDraft {
		t.Fatalf("expected post to stay a draft after edits")
	}
}
