package main

import (
	"context"
	"time"

	"github.com/blockpress/internal/config"
	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"github.com/blockpress/internal/logging"
	"github.com/blockpress/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	seedAdminName     = "admin"
	seedAdminPassword = "admin123"
)

// 测试数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	// 初始化数据库
	if err := db.Init(db.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseDSN,
		Path:   cfg.DatabasePath,
	}); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	created, err := seed(context.Background(), db.DB, time.Now())
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	if created == 0 {
		logger.Info("posts already exist, nothing seeded")
		return
	}
	logger.Info("seed complete",
		zap.Int("posts", created),
		zap.String("user", seedAdminName),
		zap.String("password", seedAdminPassword),
	)
}

type seedPost struct {
	title    string
	tags     []string
	body     string
	schedule time.Duration
	publish  bool
	edits    []string
}

var seedPosts = []seedPost{
	{
		title:   "Hello, blockpress",
		tags:    []string{"announcements"},
		body:    "Welcome to the **first** post. Posts are built from text, image and call-to-action blocks.",
		publish: true,
	},
	{
		title:   "Writing in blocks",
		tags:    []string{"guides", "editing"},
		body:    "Every save keeps a snapshot of the previous content, so nothing is lost.",
		publish: true,
		edits:   []string{"fix typo", "expand intro"},
	},
	{
		title:    "Coming soon",
		tags:     []string{"announcements", "roadmap"},
		body:     "This post is scheduled and will be published by the sweeper.",
		schedule: 24 * time.Hour,
	},
	{
		title: "Unfinished draft",
		tags:  []string{"notes"},
		body:  "Work in progress.",
		edits: []string{"outline"},
	},
}

// seed 在没有任何文章时写入管理员和示例文章，返回新建文章数量。
func seed(ctx context.Context, gdb *gorm.DB, now time.Time) (int, error) {
	var count int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	if err := db.EnsureUser(gdb, seedAdminName, seedAdminPassword); err != nil {
		return 0, err
	}
	var admin db.User
	if err := gdb.WithContext(ctx).Where("username = ?", seedAdminName).First(&admin).Error; err != nil {
		return 0, err
	}

	posts := service.NewPostService(gdb, service.NewVersionStore(gdb)).
		WithClock(func() time.Time { return now })

	for _, sp := range seedPosts {
		fields := content.PostFields{
			Title:   sp.title,
			Excerpt: sp.body,
			Tags:    sp.tags,
			Content: content.Blocks{
				content.TextBlock{Format: content.FormatMarkdown, Content: sp.body},
				content.CTABlock{Content: "Enjoying the blog?", ButtonText: "Subscribe", ButtonURL: "/subscribe"},
			},
		}
		if sp.schedule > 0 {
			at := now.Add(sp.schedule)
			fields.PublishAt = &at
		}

		post, err := posts.Create(ctx, admin.ID, fields)
		if err != nil {
			return 0, err
		}
		for i, comment := range sp.edits {
			fields.Excerpt = sp.body + " " + comment + "."
			fields.Title = sp.title
			if i == len(sp.edits)-1 {
				fields.Title = sp.title + " (revised)"
			}
			if post, err = posts.Edit(ctx, post.ID, admin.ID, fields, comment); err != nil {
				return 0, err
			}
		}
		if sp.publish {
			if _, err := posts.PublishNow(ctx, post.ID, admin.ID); err != nil {
				return 0, err
			}
		}
	}
	return len(seedPosts), nil
}
