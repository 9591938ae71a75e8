package router

import (
	"net/http"
	"time"

	"github.com/blockpress/internal/config"
	"github.com/blockpress/internal/handler"
	"github.com/blockpress/internal/logging"
	"github.com/blockpress/internal/metrics"
	"github.com/blockpress/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionName = "blockpress_session"

// Deps 汇总路由所需的依赖。
type Deps struct {
	DB      *gorm.DB
	Config  config.AppConfig
	Logger  *zap.Logger
	Metrics *metrics.Collectors
	Deduper service.ViewDeduper
	Jobs    handler.JobRunner
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(log.Named("http")))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	api := handler.NewAPI(deps.DB, handler.Options{
		Logger:        log,
		Metrics:       deps.Metrics,
		Deduper:       deps.Deduper,
		DedupWindow:   cfg.ViewDedupWindow,
		MaxImageBytes: cfg.MaxImageBytes,
		Jobs:          deps.Jobs,
		SecureCookies: cfg.IsProduction(),
		SiteBaseURL:   cfg.SiteBaseURL,
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	public := r.Group("/api")
	{
		public.GET("/posts", api.ListPublishedPosts)
		public.GET("/posts/:id", api.ShowPost)
		public.POST("/posts/:id/share", api.SharePost)
		public.GET("/tags", api.GetTags)
		public.GET("/images/:id", api.ServeImage)
	}

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		authorized := admin.Group("/api")
		authorized.Use(handler.AuthRequired(), api.AdminRequired())
		{
			authorized.GET("/me", api.Me)

			authorized.GET("/posts", api.ListPosts)
			authorized.POST("/posts", api.CreatePost)
			authorized.GET("/posts/:id", api.GetPost)
			authorized.PUT("/posts/:id", api.UpdatePost)
			authorized.DELETE("/posts/:id", api.DeletePost)
			authorized.POST("/posts/:id/publish", api.PublishPost)
			authorized.GET("/posts/:id/versions", api.ListVersions)
			authorized.POST("/posts/:id/versions/:versionId/restore", api.RestoreVersion)
			authorized.GET("/versions/:versionId", api.GetVersion)

			authorized.GET("/images", api.ListImages)
			authorized.POST("/images", api.UploadImage)
			authorized.DELETE("/images/:id", api.DeleteImage)

			authorized.GET("/jobs", api.ListJobs)
			authorized.POST("/jobs/:name/run", api.RunJob)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cfg
}
