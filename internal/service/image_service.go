package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/blockpress/internal/db"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"
)

var (
	ErrInvalidImage  = errors.New("file is not a supported image")
	ErrImageTooLarge = errors.New("image exceeds the upload size limit")
)

const defaultMaxImageBytes int64 = 10 << 20

// ImageService stores uploaded images referenced by image blocks.
type ImageService struct {
	db       *gorm.DB
	maxBytes int64
}

// ImageFilter describes filters for listing images.
type ImageFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ImageListResult aggregates paginated image results.
type ImageListResult struct {
	Items      []db.Image `json:"items"`
	Total      int64      `json:"total"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
}

// NewImageService creates an ImageService instance. maxBytes <= 0 falls back to 10 MiB.
func NewImageService(gdb *gorm.DB, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &ImageService{db: gdb, maxBytes: maxBytes}
}

// Upload validates and stores an image read from r.
func (s *ImageService) Upload(ctx context.Context, actorID uint, filename string, r io.Reader) (*db.Image, error) {
	gdb := s.db.WithContext(ctx)
	if _, err := requireAdmin(gdb, actorID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, ErrInvalidImage
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrInvalidImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrInvalidImage
	}

	item := db.Image{
		Filename:   filepath.Base(strings.TrimSpace(filename)),
		MimeType:   mimeType,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Size:       int64(len(data)),
		Data:       data,
		UploadedBy: actorID,
	}
	if err := gdb.Create(&item).Error; err != nil {
		return nil, storageErr("store image", err)
	}
	return &item, nil
}

// Get fetches an image including its bytes.
func (s *ImageService) Get(ctx context.Context, id uint) (*db.Image, error) {
	var item db.Image
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, storageErr("get image", err)
	}
	return &item, nil
}

// List returns image metadata matching the filter, newest first.
func (s *ImageService) List(ctx context.Context, filter ImageFilter) (ImageListResult, error) {
	result := ImageListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 24),
	}

	query := s.db.WithContext(ctx).Model(&db.Image{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("filename LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, storageErr("count images", err)
	}

	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)
	offset := (result.Page - 1) * result.PerPage

	if err := query.Omit("data").
		Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, storageErr("list images", err)
	}
	return result, nil
}

// Delete removes an image. Blocks that reference it are left untouched.
func (s *ImageService) Delete(ctx context.Context, id, actorID uint) error {
	gdb := s.db.WithContext(ctx)
	if _, err := requireAdmin(gdb, actorID); err != nil {
		return err
	}

	res := gdb.Delete(&db.Image{}, id)
	if res.Error != nil {
		return storageErr("delete image", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrImageNotFound
	}
	return nil
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
