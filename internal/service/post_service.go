package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"github.com/blockpress/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// duePredicate selects scheduled drafts whose publish time has passed.
const duePredicate = "is_draft = ? AND publish_at IS NOT NULL AND publish_at < ?"

// PostService applies lifecycle transitions to posts.
type PostService struct {
	db       *gorm.DB
	versions *VersionStore
	metrics  *metrics.Collectors
	log      *zap.Logger
	now      func() time.Time
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Search  string
	State   string
	Tag     string
	Page    int
	PerPage int
}

// PostListResult aggregates paginated list data and counters.
type PostListResult struct {
	Posts          []db.Post `json:"posts"`
	Total          int64     `json:"total"`
	DraftCount     int64     `json:"draft_count"`
	ScheduledCount int64     `json:"scheduled_count"`
	PublishedCount int64     `json:"published_count"`
	TotalPages     int       `json:"total_pages"`
	Page           int       `json:"page"`
	PerPage        int       `json:"per_page"`
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB, versions *VersionStore) *PostService {
	if versions == nil {
		versions = NewVersionStore(gdb)
	}
	return &PostService{db: gdb, versions: versions, log: zap.NewNop(), now: time.Now}
}

// WithMetrics attaches lifecycle collectors.
func (s *PostService) WithMetrics(m *metrics.Collectors) *PostService {
	s.metrics = m
	return s
}

// WithLogger replaces the no-op logger.
func (s *PostService) WithLogger(log *zap.Logger) *PostService {
	if log != nil {
		s.log = log
	}
	return s
}

// WithClock overrides the time source used for schedules and timestamps.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	if now != nil {
		s.now = now
		s.versions.WithClock(now)
	}
	return s
}

// Create stores a new draft. A future PublishAt schedules it.
func (s *PostService) Create(ctx context.Context, actorID uint, input content.PostFields) (*db.Post, error) {
	gdb := s.db.WithContext(ctx)
	if _, err := requireAdmin(gdb, actorID); err != nil {
		return nil, err
	}
	fields, err := content.ValidatePost(input)
	if err != nil {
		return nil, err
	}

	post := db.Post{
		Title:              fields.Title,
		Excerpt:            fields.Excerpt,
		Tags:               fields.Tags,
		Content:            fields.Content,
		IsDraft:            true,
		PublishAt:          scheduleAt(fields.PublishAt, s.now()),
		MetaTitle:          fields.MetaTitle,
		MetaDescription:    fields.MetaDescription,
		SocialImageID:      fields.SocialImageID,
		CanonicalURL:       fields.CanonicalURL,
		ReadingTimeMinutes: content.ComputeReadingTime(fields.Content),
		AuthorID:           actorID,
	}
	if err := gdb.Omit(clause.Associations).Create(&post).Error; err != nil {
		return nil, storageErr("create post", err)
	}

	s.metrics.Transition("create")
	s.log.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("actor_id", actorID), zap.String("state", post.State()))
	return &post, nil
}

// Edit snapshots the current fields and replaces them with input. The post always
// returns to draft; a future PublishAt reschedules it.
func (s *PostService) Edit(ctx context.Context, postID, actorID uint, input content.PostFields, comment string) (*db.Post, error) {
	if _, err := requireAdmin(s.db.WithContext(ctx), actorID); err != nil {
		return nil, err
	}
	fields, err := content.ValidatePost(input)
	if err != nil {
		return nil, err
	}

	post, err := s.applyEdit(ctx, postID, actorID, func(*gorm.DB, *db.Post) (content.PostFields, string, error) {
		return fields, comment, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("edit")
	s.log.Info("post edited", zap.Uint("post_id", post.ID), zap.Uint("actor_id", actorID), zap.String("state", post.State()))
	return post, nil
}

// Restore edits the post back to the fields stored in versionID. History is appended, never rewritten.
func (s *PostService) Restore(ctx context.Context, postID, versionID, actorID uint) (*db.Post, error) {
	if _, err := requireAdmin(s.db.WithContext(ctx), actorID); err != nil {
		return nil, err
	}

	var restored int
	post, err := s.applyEdit(ctx, postID, actorID, func(tx *gorm.DB, current *db.Post) (content.PostFields, string, error) {
		var version db.PostVersion
		if err := tx.Where("id = ? AND post_id = ?", versionID, postID).First(&version).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return content.PostFields{}, "", ErrVersionNotFound
			}
			return content.PostFields{}, "", err
		}

		next := current.Fields()
		next.Title = version.Title
		next.Excerpt = version.Excerpt
		next.Tags = append(content.Tags{}, version.Tags...)
		next.Content = version.Content.Clone()
		next.PublishAt = nil

		fields, err := content.ValidatePost(next)
		if err != nil {
			return content.PostFields{}, "", err
		}
		restored = version.Version
		return fields, fmt.Sprintf("restored from version %d", version.Version), nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("restore")
	s.log.Info("post restored",
		zap.Uint("post_id", post.ID),
		zap.Uint("actor_id", actorID),
		zap.Int("from_version", restored),
	)
	return post, nil
}

// editFunc produces the replacement fields and the snapshot comment from the locked current row.
type editFunc func(tx *gorm.DB, current *db.Post) (content.PostFields, string, error)

func (s *PostService) applyEdit(ctx context.Context, postID, actorID uint, next editFunc) (*db.Post, error) {
	var updated db.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		fields, comment, err := next(tx, current)
		if err != nil {
			return err
		}

		if _, err := s.versions.snapshotTx(tx, current.ID, current.Fields(), actorID, comment); err != nil {
			return err
		}

		now := s.now()
		updates := map[string]interface{}{
			"title":                fields.Title,
			"excerpt":              fields.Excerpt,
			"tags":                 fields.Tags,
			"content":              fields.Content,
			"meta_title":           fields.MetaTitle,
			"meta_description":     fields.MetaDescription,
			"social_image_id":      nullableUint(fields.SocialImageID),
			"canonical_url":        fields.CanonicalURL,
			"reading_time_minutes": content.ComputeReadingTime(fields.Content),
			"is_draft":             true,
			"publish_at":           nullableTime(scheduleAt(fields.PublishAt, now)),
			"updated_at":           now.UTC(),
		}
		if err := tx.Model(&db.Post{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&updated, current.ID).Error
	})
	if err != nil {
		return nil, storageErr("edit post", err)
	}

	s.metrics.VersionCreated()
	return &updated, nil
}

// PublishNow publishes a draft or scheduled post immediately. Published posts are returned unchanged.
func (s *PostService) PublishNow(ctx context.Context, postID, actorID uint) (*db.Post, error) {
	if _, err := requireAdmin(s.db.WithContext(ctx), actorID); err != nil {
		return nil, err
	}

	var post db.Post
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockPost(tx, postID)
		if err != nil {
			return err
		}
		if !current.IsDraft {
			post = *current
			return nil
		}

		now := s.now().UTC()
		if err := tx.Model(&db.Post{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
			"is_draft":     false,
			"publish_at":   nil,
			"published_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		changed = true
		return tx.First(&post, current.ID).Error
	})
	if err != nil {
		return nil, storageErr("publish post", err)
	}

	if changed {
		s.metrics.Transition("publish")
		s.log.Info("post published", zap.Uint("post_id", post.ID), zap.Uint("actor_id", actorID))
	}
	return &post, nil
}

// Delete removes a post and its version history.
func (s *PostService) Delete(ctx context.Context, postID, actorID uint) error {
	if _, err := requireAdmin(s.db.WithContext(ctx), actorID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPost(tx, postID); err != nil {
			return err
		}
		// 不依赖驱动是否开启外键级联
		if err := tx.Where("post_id = ?", postID).Delete(&db.PostVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Post{}, postID).Error
	})
	if err != nil {
		return storageErr("delete post", err)
	}

	s.metrics.Transition("delete")
	s.log.Info("post deleted", zap.Uint("post_id", postID), zap.Uint("actor_id", actorID))
	return nil
}

// PromoteDue publishes every scheduled post whose publish time is before now and
// returns their ids. Only is_draft changes. The selected rows stay locked until
// the update commits, so an edit racing the sweep either lands first and removes
// the post from the set or waits and then unpublishes it again.
func (s *PostService) PromoteDue(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Post{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(duePredicate, true, now.UTC()).
			Order("id asc").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&db.Post{}).
			Where("id IN ?", ids).
			Where(duePredicate, true, now.UTC()).
			UpdateColumn("is_draft", false).Error
	})
	if err != nil {
		return nil, storageErr("promote scheduled posts", err)
	}
	return ids, nil
}

// Get fetches a post in any state.
func (s *PostService) Get(ctx context.Context, id uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storageErr("get post", err)
	}
	return &post, nil
}

// GetPublished fetches a post only if readers may see it.
func (s *PostService) GetPublished(ctx context.Context, id uint) (*db.Post, error) {
	var post db.Post
	if err := s.db.WithContext(ctx).Where("is_draft = ?", false).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storageErr("get published post", err)
	}
	return &post, nil
}

// List provides paginated posts with per-state counters based on filters.
func (s *PostService) List(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	gdb := s.db.WithContext(ctx)
	result := &PostListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 10),
	}
	state := strings.ToLower(strings.TrimSpace(filter.State))

	base := func() *gorm.DB {
		return s.applyFilters(gdb.Model(&db.Post{}), filter)
	}

	if err := applyState(base(), state).Count(&result.Total).Error; err != nil {
		return nil, storageErr("count posts", err)
	}

	orderBy := "created_at desc, id desc"
	if state == db.StatePublished {
		// 由定时任务发布的文章没有 published_at，回退到 publish_at
		orderBy = "COALESCE(published_at, publish_at, created_at) desc, id desc"
	}
	var posts []db.Post
	if err := applyState(base(), state).
		Order(orderBy).
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&posts).Error; err != nil {
		return nil, storageErr("list posts", err)
	}

	counters := []struct {
		state string
		dest  *int64
	}{
		{db.StateDraft, &result.DraftCount},
		{db.StateScheduled, &result.ScheduledCount},
		{db.StatePublished, &result.PublishedCount},
	}
	for _, counter := range counters {
		if err := applyState(base(), counter.state).Count(counter.dest).Error; err != nil {
			return nil, storageErr("count posts by state", err)
		}
	}

	result.Posts = posts
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	return result, nil
}

// ListPublished lists only posts readers may see, newest publication first.
func (s *PostService) ListPublished(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	filter.State = db.StatePublished
	return s.List(ctx, filter)
}

func (s *PostService) applyFilters(query *gorm.DB, filter PostFilter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		query = query.Where("(title LIKE ? ESCAPE '!' OR excerpt LIKE ? ESCAPE '!')", like, like)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		// tags 以 JSON 数组存储，按带引号的元素匹配，大小写与标签列表一致
		encoded, err := json.Marshal(tag)
		if err == nil {
			query = query.Where("LOWER(tags) LIKE LOWER(?) ESCAPE '!'", "%"+escapeLike(string(encoded))+"%")
		}
	}
	return query
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike quotes LIKE wildcards so user input matches literally under ESCAPE '!'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func applyState(query *gorm.DB, state string) *gorm.DB {
	switch state {
	case db.StateDraft:
		return query.Where("is_draft = ? AND publish_at IS NULL", true)
	case db.StateScheduled:
		return query.Where("is_draft = ? AND publish_at IS NOT NULL", true)
	case db.StatePublished:
		return query.Where("is_draft = ?", false)
	default:
		return query
	}
}

func lockPost(tx *gorm.DB, postID uint) (*db.Post, error) {
	var post db.Post
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// scheduleAt keeps publishAt only when it lies after now. Times are stored in UTC.
func scheduleAt(publishAt *time.Time, now time.Time) *time.Time {
	if publishAt == nil || !publishAt.After(now) {
		return nil
	}
	at := publishAt.UTC()
	return &at
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableUint(v *uint) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
