package database

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options tunes the connection pool and query logging.
type Options struct {
	Debug           bool
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions mirrors the pool sizing used in production.
func DefaultOptions() Options {
	return Options{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

// Config returns the gorm config shared by every dialect: UTC timestamps and
// the gorm logger at a verbosity matching opts.
func Config(opts Options) *gorm.Config {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Debug {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	return &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Open connects to postgres and configures the pool.
func Open(dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	logger.Log.Info("Database connected",
		zap.Int("max_open_conns", opts.MaxOpenConns),
	)
	return db, nil
}

// Migrate creates or updates every table, then the indexes AutoMigrate cannot
// express.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// indexStatements are valid on both postgres and sqlite. The partial unique
// indexes are what keep join rows unique among live rows: the toggle code
// relies on them to absorb concurrent inserts.
var indexStatements = []string{
	// One live like per (user, kind, target).
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_likes_active ON likes (liked_by, kind, target_id) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_likes_target_active ON likes (kind, target_id) WHERE deleted_at IS NULL",

	// One live subscription per (subscriber, channel).
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_active ON subscriptions (subscriber_id, channel_id) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_subscriptions_channel_active ON subscriptions (channel_id) WHERE deleted_at IS NULL",

	// A view is keyed by user when authenticated and by IP otherwise.
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_views_video_viewer ON views (video_id, viewer_id) WHERE viewer_id IS NOT NULL",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_views_video_ip ON views (video_id, ip) WHERE viewer_id IS NULL",

	"CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_active ON tags (name) WHERE deleted_at IS NULL",

	"CREATE INDEX IF NOT EXISTS idx_videos_owner_created ON videos (owner_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_videos_published_created ON videos (is_published, created_at DESC) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_comments_target_created ON comments (target_kind, target_id, created_at DESC) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_posts_owner_created ON posts (owner_id, created_at DESC) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications (recipient_id, created_at DESC) WHERE deleted_at IS NULL",
	"CREATE INDEX IF NOT EXISTS idx_playlist_entries_position ON playlist_entries (playlist_id, position)",
}

func createIndexes(db *gorm.DB) error {
	for _, stmt := range indexStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Health pings the database.
func Health(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
