package service

import (
	"context"
	"sort"
	"strings"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"gorm.io/gorm"
)

// TagService aggregates the free-form tags stored on posts.
type TagService struct {
	db *gorm.DB
}

// TagUsage 描述标签的使用次数
type TagUsage struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

// ListPublished returns the tags of published posts ordered by usage, then name.
// Tags differing only in case are merged under the first spelling seen.
func (s *TagService) ListPublished(ctx context.Context) ([]TagUsage, error) {
	var rows []content.Tags
	if err := s.db.WithContext(ctx).
		Model(&db.Post{}).
		Where("is_draft = ?", false).
		Order("id asc").
		Pluck("tags", &rows).Error; err != nil {
		return nil, storageErr("list published tags", err)
	}

	index := make(map[string]int)
	usages := make([]TagUsage, 0)
	for _, tags := range rows {
		for _, tag := range tags.Normalize() {
			key := strings.ToLower(tag)
			if i, ok := index[key]; ok {
				usages[i].Count++
				continue
			}
			index[key] = len(usages)
			usages = append(usages, TagUsage{Name: tag, Count: 1})
		}
	}

	sort.SliceStable(usages, func(i, j int) bool {
		if usages[i].Count != usages[j].Count {
			return usages[i].Count > usages[j].Count
		}
		return strings.ToLower(usages[i].Name) < strings.ToLower(usages[j].Name)
	})
	return usages, nil
}
