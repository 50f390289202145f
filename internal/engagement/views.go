package engagement

import (
	"context"
	"errors"
	"fmt"

	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Viewer identifies who watched a video. UserID wins when both are set.
type Viewer struct {
	UserID string
	IP     string
}

func (v Viewer) identity() string {
	if v.UserID != "" {
		return "user"
	}
	return "ip"
}

// ViewResult reports whether this call moved the counter.
type ViewResult struct {
	Counted bool  `json:"counted"`
	Views   int64 `json:"views"`
}

// LogView records a view once per (video, user) or (video, ip) and bumps the
// view counter only when the row is new.
func (s *Service) LogView(ctx context.Context, videoID string, viewer Viewer) (*ViewResult, error) {
	if viewer.UserID == "" && viewer.IP == "" {
		return nil, ErrNoViewerIdentity
	}

	view := &models.View{VideoID: videoID}
	if viewer.UserID != "" {
		view.ViewerID = &viewer.UserID
	} else {
		view.IP = &viewer.IP
	}

	result := &ViewResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Select("id", "owner_id", "is_published", "subscribers_only").
			Where("id = ?", videoID).Take(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if err := checkVideoAccess(tx, &video, viewer.UserID); err != nil {
			return err
		}

		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(view)
		if created.Error != nil {
			return fmt.Errorf("create view: %w", created.Error)
		}
		if created.RowsAffected > 0 {
			if err := increment(tx, videoViews, videoID); err != nil {
				return fmt.Errorf("increment views: %w", err)
			}
			result.Counted = true
		}

		views, err := read(tx, videoViews, videoID)
		if err != nil {
			return err
		}
		result.Views = views
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Get().ViewsLoggedTotal.WithLabelValues(viewer.identity(), fmt.Sprint(result.Counted)).Inc()
	return result, nil
}
