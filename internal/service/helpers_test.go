package service

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := db.SQLiteDSN(fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	return openServiceTestDB(t, dsn)
}

// setupFileTestDB 使用临时文件，供需要真实写锁的并发测试使用。
func setupFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return openServiceTestDB(t, db.SQLiteDSN(filepath.Join(t.TempDir(), "service.db")))
}

func openServiceTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(db.Options{DSN: dsn, LogLevel: logger.Silent})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, username string, admin bool) db.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := db.User{Username: username, Password: string(hashed), IsAdmin: admin}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func sampleFields(title string) content.PostFields {
	return content.PostFields{
		Title:   title,
		Excerpt: "An excerpt",
		Tags:    content.Tags{"go"},
		Content: content.Blocks{
			content.TextBlock{Content: "hello world", Format: content.FormatPlain},
		},
	}
}

func newTestPostService(gdb *gorm.DB) *PostService {
	return NewPostService(gdb, NewVersionStore(gdb))
}
