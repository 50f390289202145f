package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/testutil"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMigrateCreatesPartialUniqueIndexes(t *testing.T) {
	db := testutil.NewDB(t)

	owner := &models.User{Username: "owner", Email: "owner@example.com", FullName: "Owner", PasswordHash: "x"}
	require.NoError(t, db.Create(owner).Error)

	first := &models.Like{Kind: models.LikeKindVideo, TargetID: owner.ID, LikedBy: owner.ID}
	require.NoError(t, db.Create(first).Error)

	dup := &models.Like{Kind: models.LikeKindVideo, TargetID: owner.ID, LikedBy: owner.ID}
	assert.Error(t, db.Create(dup).Error, "a second live like must violate idx_likes_active")

	require.NoError(t, db.Delete(first).Error)
	again := &models.Like{Kind: models.LikeKindVideo, TargetID: owner.ID, LikedBy: owner.ID}
	assert.NoError(t, db.Create(again).Error, "soft-deleted rows do not block a new like")
}

func TestViewUniquenessKeys(t *testing.T) {
	db := testutil.NewDB(t)
	videoID := "0b6d3f8a-3f7e-4f0a-9f55-5d7c1b0e2a11"
	userID := "1c7e4a9b-4a8f-4b1b-8a66-6e8d2c1f3b22"
	ip := "203.0.113.9"

	require.NoError(t, db.Create(&models.View{VideoID: videoID, ViewerID: &userID}).Error)
	assert.Error(t, db.Create(&models.View{VideoID: videoID, ViewerID: &userID}).Error)

	require.NoError(t, db.Create(&models.View{VideoID: videoID, IP: &ip}).Error)
	assert.Error(t, db.Create(&models.View{VideoID: videoID, IP: &ip}).Error)
}

func TestSelfSubscriptionCheckConstraint(t *testing.T) {
	db := testutil.NewDB(t)
	u := &models.User{Username: "solo", Email: "solo@example.com", FullName: "Solo", PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)

	// Bypass the model hook to hit the table constraint directly.
	err := db.Exec("INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		"2d8f5b0c-5b90-4c2c-9b77-7f9e3d2a4c33", u.ID, u.ID).Error
	assert.Error(t, err)
}

func TestHealthReportsPingFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	cfg := database.Config(database.DefaultOptions())
	cfg.DisableAutomaticPing = true
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), cfg)
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, database.Health(context.Background(), db))

	mock.ExpectPing()
	assert.NoError(t, database.Health(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateNilDB(t *testing.T) {
	assert.Error(t, database.Migrate(nil))
}
