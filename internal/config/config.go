package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultSessionSecret = "blockpress-dev-secret"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	AppEnv            string
	DatabaseDriver    string
	DatabaseDSN       string
	DatabasePath      string
	SessionSecret     string
	GinMode           string
	SuperRootUserName string
	SuperRootPassword string
	SiteBaseURL       string
	AllowedOrigins    []string
	RedisURL          string
	ViewDedupWindow   time.Duration
	SweepInterval     time.Duration
	LogLevel          string
	MaxImageBytes     int64
}

// Load 从环境变量（以及可选的 config.yml）读取应用配置，并为缺失项提供默认值。
func Load() (AppConfig, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// config.yml 可以不存在，但存在时必须能解析
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_PATH", "blockpress.db")
	v.SetDefault("SESSION_SECRET", defaultSessionSecret)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("SITE_BASE_URL", "http://localhost:8080")
	v.SetDefault("VIEW_DEDUP_WINDOW", "30m")
	v.SetDefault("SWEEP_INTERVAL", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_IMAGE_BYTES", 10<<20)

	port := strings.TrimSpace(v.GetString("PORT"))
	listenAddr := strings.TrimSpace(v.GetString("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(v.GetString("DATABASE_PATH"))
	databaseDSN := strings.TrimSpace(v.GetString("DATABASE_DSN"))

	cfg := AppConfig{
		ListenAddr:        listenAddr,
		AppEnv:            strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabaseDSN:       databaseDSN,
		DatabasePath:      databasePath,
		SessionSecret:     strings.TrimSpace(v.GetString("SESSION_SECRET")),
		GinMode:           strings.TrimSpace(v.GetString("GIN_MODE")),
		SuperRootUserName: strings.TrimSpace(v.GetString("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(v.GetString("SUPER_ROOT_PASSWORD")),
		SiteBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("SITE_BASE_URL")), "/"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		RedisURL:          strings.TrimSpace(v.GetString("REDIS_URL")),
		ViewDedupWindow:   v.GetDuration("VIEW_DEDUP_WINDOW"),
		SweepInterval:     v.GetDuration("SWEEP_INTERVAL"),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		MaxImageBytes:     v.GetInt64("MAX_IMAGE_BYTES"),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = defaultSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置项之间的约束。
func (c AppConfig) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %s", c.DatabaseDriver)
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.ViewDedupWindow < 0 {
		return errors.New("VIEW_DEDUP_WINDOW must not be negative")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if c.IsProduction() && c.SessionSecret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be changed from the default value in production")
	}
	return nil
}

// IsProduction 判断是否运行在生产环境。
func (c AppConfig) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return values
}
