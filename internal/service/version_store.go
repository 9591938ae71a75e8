package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VersionStore persists immutable snapshots of a post's editable fields.
type VersionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewVersionStore creates a VersionStore instance.
func NewVersionStore(gdb *gorm.DB) *VersionStore {
	return &VersionStore{db: gdb, now: time.Now}
}

// WithClock overrides the timestamp source, mainly for tests.
func (s *VersionStore) WithClock(now func() time.Time) *VersionStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Snapshot stores fields as the next version of postID in its own transaction.
func (s *VersionStore) Snapshot(ctx context.Context, postID uint, fields content.PostFields, actorID uint, comment string) (*db.PostVersion, error) {
	var version *db.PostVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.snapshotTx(tx, postID, fields, actorID, comment)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return nil, storageErr("snapshot post version", err)
	}
	return version, nil
}

// snapshotTx assigns max(version)+1 for postID inside tx. The parent row is
// locked first so concurrent snapshots of one post queue behind each other;
// the unique (post_id, version) index rejects anything that slips through.
func (s *VersionStore) snapshotTx(tx *gorm.DB, postID uint, fields content.PostFields, actorID uint, comment string) (*db.PostVersion, error) {
	var parent db.Post
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&parent, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	var actors int64
	if err := tx.Model(&db.User{}).Where("id = ?", actorID).Count(&actors).Error; err != nil {
		return nil, err
	}
	if actors == 0 {
		return nil, ErrUserNotFound
	}

	var current int
	if err := tx.Model(&db.PostVersion{}).
		Where("post_id = ?", postID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&current).Error; err != nil {
		return nil, err
	}

	version := db.PostVersion{
		PostID:    postID,
		Version:   current + 1,
		Title:     fields.Title,
		Excerpt:   fields.Excerpt,
		Tags:      append(content.Tags{}, fields.Tags...),
		Content:   fields.Content.Clone(),
		CreatedAt: s.now().UTC(),
		CreatedBy: actorID,
		Comment:   strings.TrimSpace(comment),
	}
	if err := tx.Omit(clause.Associations).Create(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

// ListVersions returns the history of postID, newest first.
func (s *VersionStore) ListVersions(ctx context.Context, postID uint) ([]db.PostVersion, error) {
	gdb := s.db.WithContext(ctx)

	var posts int64
	if err := gdb.Model(&db.Post{}).Where("id = ?", postID).Count(&posts).Error; err != nil {
		return nil, storageErr("count posts", err)
	}
	if posts == 0 {
		return nil, ErrPostNotFound
	}

	var versions []db.PostVersion
	if err := gdb.Where("post_id = ?", postID).
		Order("version desc").
		Find(&versions).Error; err != nil {
		return nil, storageErr("list post versions", err)
	}
	return versions, nil
}

// GetVersion fetches a single snapshot by its id.
func (s *VersionStore) GetVersion(ctx context.Context, versionID uint) (*db.PostVersion, error) {
	var version db.PostVersion
	if err := s.db.WithContext(ctx).First(&version, versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, storageErr("get post version", err)
	}
	return &version, nil
}
