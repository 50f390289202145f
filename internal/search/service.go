package search

import (
	"context"
	"fmt"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service routes writes to the primary index and reads to the primary with
// the SQL index as fallback.
type Service struct {
	primary  Index
	fallback Index
}

// NewService builds a search service. primary may be nil, in which case every
// query goes to fallback.
func NewService(primary, fallback Index) *Service {
	return &Service{primary: primary, fallback: fallback}
}

// Search runs q, degrading to the fallback index when the primary errors.
func (s *Service) Search(ctx context.Context, q Query) (res *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "search.videos")
	defer func() { telemetry.End(span, err) }()

	if s.primary != nil {
		res, err = s.primary.SearchVideos(ctx, q)
		if err == nil {
			return res, nil
		}
		logger.Log.Warn("Primary search failed, using SQL fallback", zap.Error(err))
		span.SetAttributes(attribute.Bool("search.fallback", true))
	}
	return s.fallback.SearchVideos(ctx, q)
}

// Sync indexes v when it is published and removes it otherwise. Indexing is
// best effort: failures are logged, never returned, and Reindex repairs them.
func (s *Service) Sync(ctx context.Context, v *models.Video) {
	if s.primary == nil {
		return
	}
	var err error
	if v.IsPublished && !v.DeletedAt.Valid {
		err = s.primary.IndexVideo(ctx, DocFromVideo(v))
	} else {
		err = s.primary.DeleteVideo(ctx, v.ID)
	}
	if err != nil {
		logger.Log.Warn("Search index update failed", logger.WithVideoID(v.ID), zap.Error(err))
	}
}

// Remove drops a video from the primary index.
func (s *Service) Remove(ctx context.Context, videoID string) {
	if s.primary == nil {
		return
	}
	if err := s.primary.DeleteVideo(ctx, videoID); err != nil {
		logger.Log.Warn("Search index delete failed", logger.WithVideoID(videoID), zap.Error(err))
	}
}

// Reindex pushes every published video to the primary index in batches.
func (s *Service) Reindex(ctx context.Context, db *gorm.DB) (int, error) {
	if s.primary == nil {
		return 0, nil
	}
	var indexed int
	var videos []models.Video
	result := db.WithContext(ctx).
		Preload("Owner").Preload("Tags").
		Where("is_published = ?", true).
		FindInBatches(&videos, 200, func(tx *gorm.DB, batch int) error {
			for i := range videos {
				if err := s.primary.IndexVideo(ctx, DocFromVideo(&videos[i])); err != nil {
					return fmt.Errorf("failed to index video %s: %w", videos[i].ID, err)
				}
				indexed++
			}
			return nil
		})
	if result.Error != nil {
		return indexed, result.Error
	}
	logger.Log.Info("Search reindex complete", zap.Int("videos", indexed))
	return indexed, nil
}
