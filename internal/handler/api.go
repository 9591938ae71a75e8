package handler

import (
	"strings"
	"time"

	"github.com/blockpress/internal/metrics"
	"github.com/blockpress/internal/scheduler"
	"github.com/blockpress/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobRunner exposes the background jobs to the admin API.
type JobRunner interface {
	List() []scheduler.JobInfo
	Get(name string) (scheduler.JobInfo, error)
	RunNow(name string) error
}

// Options carries optional collaborators for the handlers.
type Options struct {
	Logger        *zap.Logger
	Metrics       *metrics.Collectors
	Deduper       service.ViewDeduper
	DedupWindow   time.Duration
	MaxImageBytes int64
	Jobs          JobRunner
	SecureCookies bool
	// SiteBaseURL prefixes image links in responses; empty keeps them relative.
	SiteBaseURL   string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db            *gorm.DB
	posts         *service.PostService
	versions      *service.VersionStore
	analytics     *service.AnalyticsService
	images        *service.ImageService
	tags          *service.TagService
	users         *service.UserService
	jobs          JobRunner
	log           *zap.Logger
	secureCookies bool
	siteBaseURL   string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	versions := service.NewVersionStore(gdb)
	analytics := service.NewAnalyticsService(gdb).
		WithDedupWindow(opts.DedupWindow).
		WithMetrics(opts.Metrics).
		WithLogger(log.Named("analytics"))
	if opts.Deduper != nil {
		analytics.WithDeduper(opts.Deduper)
	}

	return &API{
		db: gdb,
		posts: service.NewPostService(gdb, versions).
			WithMetrics(opts.Metrics).
			WithLogger(log.Named("posts")),
		versions:      versions,
		analytics:     analytics,
		images:        service.NewImageService(gdb, opts.MaxImageBytes),
		tags:          service.NewTagService(gdb),
		users:         service.NewUserService(gdb),
		jobs:          opts.Jobs,
		log:           log,
		secureCookies: opts.SecureCookies,
		siteBaseURL:   strings.TrimRight(opts.SiteBaseURL, "/"),
	}
}
