package db

import (
	"time"

	"github.com/blockpress/internal/content"
)

// PostVersion 记录文章可编辑字段在某一时刻的不可变快照。
type PostVersion struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;uniqueIndex:idx_post_versions_post_version,priority:1" json:"post_id"`
	Post      Post           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Version   int            `gorm:"not null;uniqueIndex:idx_post_versions_post_version,priority:2" json:"version"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Excerpt   string         `gorm:"type:text" json:"excerpt"`
	Tags      content.Tags   `json:"tags"`
	Content   content.Blocks `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy uint           `gorm:"not null;index" json:"created_by"`
	Creator   User           `gorm:"foreignKey:CreatedBy" json:"-"`
	Comment   string         `gorm:"type:text" json:"comment,omitempty"`
}

// TableName 指定自定义表名。
func (PostVersion) TableName() string {
	return "post_versions"
}
