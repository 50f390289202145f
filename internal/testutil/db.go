// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// NewDB opens a private in-memory sqlite database migrated with the production
// schema. A single connection serializes access the way a row lock would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbCounter.Add(1))

	cfg := database.Config(database.DefaultOptions())
	cfg.Logger = gormlogger.Discard
	cfg.DisableForeignKeyConstraintWhenMigrating = true

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a unique username derived from name.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	n := dbCounter.Add(1)
	u := &models.User{
		Username:     fmt.Sprintf("%s%d", name, n),
		Email:        fmt.Sprintf("%s%d@example.com", name, n),
		FullName:     name,
		PasswordHash: "not-a-real-hash",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateVideo inserts a published video owned by owner.
func CreateVideo(t testing.TB, db *gorm.DB, owner *models.User, title string) *models.Video {
	t.Helper()
	v := &models.Video{
		OwnerID:     owner.ID,
		Title:       title,
		VideoURL:    "https://cdn.example.com/videos/" + title + ".mp4",
		IsPublished: true,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create video: %v", err)
	}
	return v
}

// CreatePost inserts a community post owned by owner.
func CreatePost(t testing.TB, db *gorm.DB, owner *models.User, content string) *models.Post {
	t.Helper()
	p := &models.Post{OwnerID: owner.ID, Content: content}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}
