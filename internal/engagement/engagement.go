// Package engagement owns every write that moves a denormalized counter:
// like and subscription toggles, view logging and comment creation/removal.
// Each mutation runs in one transaction together with its counter update, and
// the partial unique indexes created by database.Migrate absorb concurrent
// duplicate inserts.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTargetNotFound   = errors.New("target not found")
	ErrInvalidKind      = models.ErrInvalidLikeKind
	ErrSelfSubscription = models.ErrSelfSubscription
	ErrSubscribersOnly  = errors.New("video is available to subscribers only")
	ErrNoViewerIdentity = errors.New("viewer has neither a user id nor an ip address")
	ErrNotOwner         = errors.New("only the owner can modify this resource")
	ErrInvalidParent    = errors.New("parent comment does not belong to this target")
)

// Service performs engagement writes against a gorm database.
type Service struct {
	db *gorm.DB
}

// NewService creates an engagement service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ToggleResult is the state after a toggle and the target's counter value.
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// ParseLikeKind accepts "video", "videos", "Post" and so on.
func ParseLikeKind(s string) (models.LikeKind, error) {
	k := models.LikeKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// counter names one denormalized column.
type counter struct {
	table  string
	column string
}

var (
	videoLikes       = counter{"videos", "likes_count"}
	videoComments    = counter{"videos", "comments_count"}
	videoViews       = counter{"videos", "views"}
	postLikes        = counter{"posts", "likes_count"}
	postComments     = counter{"posts", "comments_count"}
	commentLikes     = counter{"comments", "likes_count"}
	channelSubsCount = counter{"users", "subscribers_count"}
)

func likeCounter(kind models.LikeKind) counter {
	switch kind {
	case models.LikeKindPost:
		return postLikes
	case models.LikeKindComment:
		return commentLikes
	default:
		return videoLikes
	}
}

func increment(tx *gorm.DB, c counter, id string) error {
	return tx.Table(c.table).Where("id = ?", id).
		UpdateColumn(c.column, gorm.Expr(c.column+" + 1")).Error
}

// decrement never takes a counter below zero.
func decrement(tx *gorm.DB, c counter, id string) error {
	expr := fmt.Sprintf("CASE WHEN %[1]s > 0 THEN %[1]s - 1 ELSE 0 END", c.column)
	return tx.Table(c.table).Where("id = ?", id).
		UpdateColumn(c.column, gorm.Expr(expr)).Error
}

func read(tx *gorm.DB, c counter, id string) (int64, error) {
	var values []int64
	if err := tx.Table(c.table).Where("id = ?", id).Pluck(c.column, &values).Error; err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, ErrTargetNotFound
	}
	return values[0], nil
}

// toggleSpec describes one join relation for the shared toggle routine.
type toggleSpec struct {
	label    string
	counter  counter
	targetID string
	// live scopes a query to the actor's live join row.
	live func(tx *gorm.DB) *gorm.DB
	// row is the zero model used for the soft delete.
	row interface{}
	// validate runs before an insert only.
	validate func(tx *gorm.DB) error
	// newRow builds the join row to insert.
	newRow func() interface{}
}

// toggle flips a join relation. The removal is a single conditional update
// whose affected-row count picks the branch, and the insert is ON CONFLICT DO
// NOTHING, so two racing toggles can never produce two live rows or move the
// counter twice in the same direction.
func (s *Service) toggle(ctx context.Context, spec toggleSpec) (*ToggleResult, error) {
	result := &ToggleResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := spec.live(tx).Delete(spec.row)
		if removed.Error != nil {
			return fmt.Errorf("remove %s: %w", spec.label, removed.Error)
		}

		if removed.RowsAffected > 0 {
			if err := decrement(tx, spec.counter, spec.targetID); err != nil {
				return fmt.Errorf("decrement %s counter: %w", spec.label, err)
			}
			result.Active = false
		} else {
			if err := spec.validate(tx); err != nil {
				return err
			}
			created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(spec.newRow())
			if created.Error != nil {
				return fmt.Errorf("create %s: %w", spec.label, created.Error)
			}
			// Zero rows means a concurrent toggle inserted first; the
			// relation is active and that toggle already counted it.
			if created.RowsAffected > 0 {
				if err := increment(tx, spec.counter, spec.targetID); err != nil {
					return fmt.Errorf("increment %s counter: %w", spec.label, err)
				}
			}
			result.Active = true
		}

		count, err := read(tx, spec.counter, spec.targetID)
		if err != nil {
			return err
		}
		result.Count = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	state := "inactive"
	if result.Active {
		state = "active"
	}
	metrics.Get().TogglesTotal.WithLabelValues(spec.label, state).Inc()
	return result, nil
}

// ToggleLike likes or unlikes a video, post or comment.
func (s *Service) ToggleLike(ctx context.Context, actorID string, kind models.LikeKind, targetID string) (*ToggleResult, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	live := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("liked_by = ? AND kind = ? AND target_id = ?", actorID, kind, targetID)
	}

	res, err := s.toggle(ctx, toggleSpec{
		label:    "like_" + string(kind),
		counter:  likeCounter(kind),
		targetID: targetID,
		live:     live,
		row:      &models.Like{},
		validate: func(tx *gorm.DB) error {
			return validateLikeTarget(tx, actorID, kind, targetID)
		},
		newRow: func() interface{} {
			return &models.Like{Kind: kind, TargetID: targetID, LikedBy: actorID}
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("Like toggled",
		logger.WithUserID(actorID),
		logger.WithTarget(string(kind), targetID),
		zap.Bool("liked", res.Active),
		zap.Int64("likes", res.Count),
	)
	return res, nil
}

// ToggleSubscription subscribes to or unsubscribes from a channel.
func (s *Service) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (*ToggleResult, error) {
	if subscriberID == channelID {
		return nil, ErrSelfSubscription
	}

	res, err := s.toggle(ctx, toggleSpec{
		label:    "subscription",
		counter:  channelSubsCount,
		targetID: channelID,
		live: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("subscriber_id = ? AND channel_id = ?", subscriberID, channelID)
		},
		row: &models.Subscription{},
		validate: func(tx *gorm.DB) error {
			return exists(tx, &models.User{}, channelID)
		},
		newRow: func() interface{} {
			return &models.Subscription{SubscriberID: subscriberID, ChannelID: channelID}
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("Subscription toggled",
		logger.WithUserID(subscriberID),
		zap.String("channel_id", channelID),
		zap.Bool("subscribed", res.Active),
		zap.Int64("subscribers", res.Count),
	)
	return res, nil
}

// IsLiked reports whether actorID has a live like on the target.
func (s *Service) IsLiked(ctx context.Context, actorID string, kind models.LikeKind, targetID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("liked_by = ? AND kind = ? AND target_id = ?", actorID, kind, targetID).
		Count(&n).Error
	return n > 0, err
}

// IsSubscribed reports whether subscriberID follows channelID.
func (s *Service) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if subscriberID == "" {
		return false, nil
	}
	return isSubscribed(s.db.WithContext(ctx), subscriberID, channelID)
}

func isSubscribed(tx *gorm.DB, subscriberID, channelID string) (bool, error) {
	var n int64
	err := tx.Model(&models.Subscription{}).
		Where("subscriber_id = ? AND channel_id = ?", subscriberID, channelID).
		Count(&n).Error
	return n > 0, err
}

func exists(tx *gorm.DB, model interface{}, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrTargetNotFound
	}
	return nil
}

func validateLikeTarget(tx *gorm.DB, actorID string, kind models.LikeKind, targetID string) error {
	switch kind {
	case models.LikeKindVideo:
		var video models.Video
		if err := tx.Select("id", "owner_id", "is_published", "subscribers_only").
			Where("id = ?", targetID).Take(&video).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		return checkVideoAccess(tx, &video, actorID)
	case models.LikeKindPost:
		return exists(tx, &models.Post{}, targetID)
	case models.LikeKindComment:
		return exists(tx, &models.Comment{}, targetID)
	}
	return ErrInvalidKind
}

// checkVideoAccess applies the visibility rules every engagement path shares:
// drafts are invisible to everyone but the owner, subscriber-only videos need
// a live subscription.
func checkVideoAccess(tx *gorm.DB, video *models.Video, viewerID string) error {
	if video.IsOwnedBy(viewerID) {
		return nil
	}
	if !video.IsPublished {
		return ErrTargetNotFound
	}
	if video.SubscribersOnly {
		if viewerID == "" {
			return ErrSubscribersOnly
		}
		ok, err := isSubscribed(tx, viewerID, video.OwnerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSubscribersOnly
		}
	}
	return nil
}

// CheckVideoAccess is the read-side form of the visibility rules.
func (s *Service) CheckVideoAccess(ctx context.Context, video *models.Video, viewerID string) error {
	return checkVideoAccess(s.db.WithContext(ctx), video, viewerID)
}
