// Package history maintains each user's bounded most-recently-watched list.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/zfogg/vidshare/internal/models"
	"gorm.io/gorm"
)

// ErrContention is returned when concurrent writers kept winning the
// compare-and-swap for the same user.
var ErrContention = errors.New("watch history update contended, try again")

const maxAttempts = 5

// Push moves videoID to the front of list, dropping any earlier occurrence,
// and truncates the result to limit entries. list is not modified.
func Push(list []string, videoID string, limit int) []string {
	next := make([]string, 0, min(len(list)+1, limit))
	next = append(next, videoID)
	for _, id := range list {
		if len(next) == limit {
			break
		}
		if id != videoID {
			next = append(next, id)
		}
	}
	return next
}

// Service reads and writes User.WatchHistory.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Add records that userID watched videoID. Writers race through a version
// column: the update only lands if nobody else wrote since our read.
func (s *Service) Add(ctx context.Context, userID, videoID string) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		saved := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var user models.User
			if err := tx.Select("id", "watch_history", "history_version").
				Where("id = ?", userID).Take(&user).Error; err != nil {
				return fmt.Errorf("load watch history: %w", err)
			}

			next := models.StringArray(Push(user.WatchHistory, videoID, models.MaxWatchHistory))
			res := tx.Model(&models.User{}).
				Where("id = ? AND history_version = ?", userID, user.HistoryVersion).
				UpdateColumns(map[string]interface{}{
					"watch_history":   next,
					"history_version": gorm.Expr("history_version + 1"),
				})
			if res.Error != nil {
				return fmt.Errorf("save watch history: %w", res.Error)
			}
			saved = res.RowsAffected == 1
			return nil
		})
		if err != nil {
			return err
		}
		if saved {
			return nil
		}
	}
	return ErrContention
}

// List returns the stored ids, most recent first.
func (s *Service) List(ctx context.Context, userID string) ([]string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "watch_history").
		Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, err
	}
	if user.WatchHistory == nil {
		return []string{}, nil
	}
	return user.WatchHistory, nil
}

// Videos resolves the history to videos in history order. Videos the user can
// no longer watch are skipped: deleted, unpublished by someone else, or
// subscriber-only after the subscription ended.
func (s *Service) Videos(ctx context.Context, userID string) ([]models.Video, error) {
	ids, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Video{}, nil
	}

	var found []models.Video
	if err := s.db.WithContext(ctx).Preload("Owner").
		Where("videos.id IN ?", ids).
		Scopes(models.VisibleTo(userID)).
		Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]models.Video, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	ordered := make([]models.Video, 0, len(found))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}
	return ordered, nil
}

// Clear empties the history.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"watch_history":   models.StringArray{},
			"history_version": gorm.Expr("history_version + 1"),
		}).Error
}
