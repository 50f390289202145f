package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/zfogg/vidshare/internal/models"
	"gorm.io/gorm"
)

// SQLIndex searches the videos table directly. Indexing is a no-op because
// the table is the source of truth.
type SQLIndex struct {
	db *gorm.DB
}

func NewSQLIndex(db *gorm.DB) *SQLIndex {
	return &SQLIndex{db: db}
}

func (s *SQLIndex) IndexVideo(ctx context.Context, doc VideoDoc) error { return nil }

func (s *SQLIndex) DeleteVideo(ctx context.Context, id string) error { return nil }

func (s *SQLIndex) SearchVideos(ctx context.Context, q Query) (*Result, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(q.Text))) + "%"

	scope := s.db.WithContext(ctx).Model(&models.Video{}).
		Where("videos.is_published = ?", true).
		Scopes(models.VisibleTo(q.ViewerID)).
		Where(`(LOWER(videos.title) LIKE ? ESCAPE '\' OR LOWER(videos.description) LIKE ? ESCAPE '\' OR videos.id IN (?))`,
			pattern, pattern,
			s.db.Table("video_tags").
				Select("video_tags.video_id").
				Joins("JOIN tags ON tags.id = video_tags.tag_id AND tags.deleted_at IS NULL").
				Where(`tags.name LIKE ? ESCAPE '\'`, pattern),
		)

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	var ids []string
	if err := scope.Session(&gorm.Session{}).
		Order("videos.views DESC, videos.created_at DESC").
		Offset(q.Offset).Limit(q.Limit).
		Pluck("videos.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}

	return &Result{IDs: ids, Total: total}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ Index = (*SQLIndex)(nil)
