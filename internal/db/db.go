package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// sqliteParams 打开外键约束，并让写事务以 BEGIN IMMEDIATE 串行化。
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

// Options 描述如何连接数据库。
type Options struct {
	Driver   string
	DSN      string
	Path     string
	LogLevel logger.LogLevel
}

// Init 打开数据库连接、执行自动迁移并设置全局 DB。
func Init(opts Options) error {
	gdb, err := Open(opts)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	DB = gdb
	return nil
}

// Open 根据驱动名称建立 gorm 连接。sqlite 在 DSN 为空时回退到 Path（默认 blockpress.db）。
func Open(opts Options) (*gorm.DB, error) {
	logLevel := opts.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite":
		dsn := strings.TrimSpace(opts.DSN)
		if dsn == "" {
			path := strings.TrimSpace(opts.Path)
			if path == "" {
				path = "blockpress.db"
			}
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
			dsn = SQLiteDSN(path)
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	case "mysql":
		dialector = mysql.New(mysql.Config{DSN: opts.DSN, DefaultStringSize: 191})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return gdb, nil
}

// SQLiteDSN 为 sqlite 文件路径附加连接参数。
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqliteParams
}

// Migrate 为核心模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&Post{},
		&PostVersion{},
		&Image{},
	)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
