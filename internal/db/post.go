package db

import (
	"time"

	"github.com/blockpress/internal/content"
)

// 文章状态
const (
	StateDraft     = "draft"
	StateScheduled = "scheduled"
	StatePublished = "published"
)

// Post 定义了文章的当前状态。
type Post struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Title              string         `gorm:"size:255;not null" json:"title"`
	Excerpt            string         `gorm:"type:text" json:"excerpt"`
	Tags               content.Tags   `json:"tags"`
	Content            content.Blocks `json:"content"`
	IsDraft            bool           `gorm:"not null;index:idx_posts_schedule,priority:1" json:"is_draft"`
	PublishAt          *time.Time     `gorm:"index:idx_posts_schedule,priority:2" json:"publish_at"`
	PublishedAt        *time.Time     `json:"published_at"`
	MetaTitle          string         `gorm:"size:255" json:"meta_title"`
	MetaDescription    string         `gorm:"size:160" json:"meta_description"`
	SocialImageID      *uint          `json:"social_image_id"`
	CanonicalURL       string         `gorm:"size:2048" json:"canonical_url"`
	Views              uint64         `gorm:"not null;default:0" json:"views"`
	ShareCount         uint64         `gorm:"not null;default:0" json:"share_count"`
	ReadingTimeMinutes int            `gorm:"not null;default:0" json:"reading_time_minutes"`
	AuthorID           uint           `gorm:"index" json:"author_id"`
	Author             User           `gorm:"foreignKey:AuthorID" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// State 根据草稿标记与定时发布时间推导文章所处的生命周期状态。
func (p *Post) State() string {
	switch {
	case !p.IsDraft:
		return StatePublished
	case p.PublishAt != nil:
		return StateScheduled
	default:
		return StateDraft
	}
}

// Fields 返回文章当前的可编辑字段。
func (p *Post) Fields() content.PostFields {
	return content.PostFields{
		Title:           p.Title,
		Excerpt:         p.Excerpt,
		Tags:            append(content.Tags{}, p.Tags...),
		Content:         p.Content.Clone(),
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		SocialImageID:   p.SocialImageID,
		CanonicalURL:    p.CanonicalURL,
		PublishAt:       p.PublishAt,
	}
}
