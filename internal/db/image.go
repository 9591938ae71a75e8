package db

import "time"

// Image 存储上传的图片二进制内容，图片块通过 ID 引用。
type Image struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"size:255" json:"filename"`
	MimeType   string    `gorm:"size:100;not null" json:"mime_type"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Size       int64     `json:"size"`
	Data       []byte    `gorm:"not null" json:"-"`
	UploadedBy uint      `gorm:"index" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}
