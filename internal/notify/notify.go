// Package notify records notifications for engagement events and pushes them
// to recipients that are online.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event is one thing an actor did that a recipient should hear about.
type Event struct {
	Type        models.NotificationType
	ActorID     string
	RecipientID string
	EntityKind  string
	EntityID    string
	Message     string
}

// View is a notification with its actor resolved for rendering.
type View struct {
	models.Notification
	Actor *models.PublicUser `json:"actor,omitempty"`
}

// Service stores notifications and fans them out over the realtime hub.
type Service struct {
	db     *gorm.DB
	pusher realtime.Pusher
}

// NewService creates a notification service. pusher may be nil, in which case
// notifications are only stored.
func NewService(db *gorm.DB, pusher realtime.Pusher) *Service {
	return &Service{db: db, pusher: pusher}
}

// Notify stores the event and pushes it live. Self-actions and events without
// a recipient are dropped and return (nil, nil).
func (s *Service) Notify(ctx context.Context, ev Event) (*models.Notification, error) {
	if ev.RecipientID == "" || ev.RecipientID == ev.ActorID {
		return nil, nil
	}

	n := &models.Notification{
		RecipientID: ev.RecipientID,
		ActorID:     ev.ActorID,
		Type:        ev.Type,
		EntityKind:  ev.EntityKind,
		EntityID:    ev.EntityID,
		Message:     ev.Message,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.push(ctx, n)
	return n, nil
}

func (s *Service) push(ctx context.Context, n *models.Notification) {
	if s.pusher == nil || !s.pusher.IsUserOnline(n.RecipientID) {
		return
	}

	view := View{Notification: *n}
	var actor models.User
	if err := s.db.WithContext(ctx).Select("id", "username", "full_name", "avatar_url").
		Take(&actor, "id = ?", n.ActorID).Error; err == nil {
		view.Actor = actor.Public()
	}
	s.pusher.SendToUser(n.RecipientID, realtime.NewMessage(realtime.MessageTypeNotification, view))

	if unread, err := s.UnreadCount(ctx, n.RecipientID); err == nil {
		s.pusher.SendToUser(n.RecipientID, realtime.NewMessage(realtime.MessageTypeNotificationCount, realtime.CountPayload{Unread: unread}))
	}
}

func (s *Service) actorName(ctx context.Context, actorID string) string {
	var u models.User
	if err := s.db.WithContext(ctx).Select("username").Take(&u, "id = ?", actorID).Error; err != nil {
		return "someone"
	}
	return u.Username
}

// OnLike notifies the owner of a liked video, post or comment.
func (s *Service) OnLike(ctx context.Context, actorID string, kind models.LikeKind, targetID string) error {
	var model interface{}
	switch kind {
	case models.LikeKindVideo:
		model = &models.Video{}
	case models.LikeKindPost:
		model = &models.Post{}
	case models.LikeKindComment:
		model = &models.Comment{}
	default:
		return models.ErrInvalidLikeKind
	}

	ownerID, err := s.ownerOf(ctx, model, targetID)
	if err != nil {
		return err
	}

	_, err = s.Notify(ctx, Event{
		Type:        models.NotificationLike,
		ActorID:     actorID,
		RecipientID: ownerID,
		EntityKind:  string(kind),
		EntityID:    targetID,
		Message:     fmt.Sprintf("%s liked your %s", s.actorName(ctx, actorID), kind),
	})
	return err
}

// OnComment notifies the parent author of a reply, or the owner of the
// commented video or post for a top-level comment.
func (s *Service) OnComment(ctx context.Context, comment *models.Comment) error {
	name := s.actorName(ctx, comment.OwnerID)

	if comment.ParentID != nil {
		parentOwner, err := s.ownerOf(ctx, &models.Comment{}, *comment.ParentID)
		if err != nil {
			return err
		}
		_, err = s.Notify(ctx, Event{
			Type:        models.NotificationReply,
			ActorID:     comment.OwnerID,
			RecipientID: parentOwner,
			EntityKind:  "comment",
			EntityID:    comment.ID,
			Message:     fmt.Sprintf("%s replied to your comment", name),
		})
		return err
	}

	var model interface{} = &models.Video{}
	if comment.TargetKind == models.CommentOnPost {
		model = &models.Post{}
	}
	ownerID, err := s.ownerOf(ctx, model, comment.TargetID)
	if err != nil {
		return err
	}
	_, err = s.Notify(ctx, Event{
		Type:        models.NotificationComment,
		ActorID:     comment.OwnerID,
		RecipientID: ownerID,
		EntityKind:  string(comment.TargetKind),
		EntityID:    comment.TargetID,
		Message:     fmt.Sprintf("%s commented on your %s", name, comment.TargetKind),
	})
	return err
}

// OnSubscribe notifies a channel of a new subscriber.
func (s *Service) OnSubscribe(ctx context.Context, subscriberID, channelID string) error {
	_, err := s.Notify(ctx, Event{
		Type:        models.NotificationSubscribe,
		ActorID:     subscriberID,
		RecipientID: channelID,
		EntityKind:  "user",
		EntityID:    subscriberID,
		Message:     fmt.Sprintf("%s subscribed to your channel", s.actorName(ctx, subscriberID)),
	})
	return err
}

// maxFanOut caps how many subscribers hear about one upload.
const maxFanOut = 1000

// OnNewVideo tells the owner's subscribers about a published video.
func (s *Service) OnNewVideo(ctx context.Context, video *models.Video) error {
	var subscribers []string
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("channel_id = ?", video.OwnerID).
		Order("created_at").Limit(maxFanOut).
		Pluck("subscriber_id", &subscribers).Error; err != nil {
		return err
	}
	if len(subscribers) == 0 {
		return nil
	}

	msg := fmt.Sprintf("%s uploaded %q", s.actorName(ctx, video.OwnerID), video.Title)
	for _, id := range subscribers {
		if _, err := s.Notify(ctx, Event{
			Type:        models.NotificationNewVideo,
			ActorID:     video.OwnerID,
			RecipientID: id,
			EntityKind:  "video",
			EntityID:    video.ID,
			Message:     msg,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ownerOf(ctx context.Context, model interface{}, id string) (string, error) {
	var owners []string
	err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).
		Limit(1).Pluck("owner_id", &owners).Error
	if err != nil || len(owners) == 0 {
		return "", err
	}
	return owners[0], nil
}

// LogFailure is for callers that notify after their own write committed and
// must not fail the request because of it.
func LogFailure(err error, event string) {
	if err != nil {
		logger.Log.Warn("Failed to create notification", zap.String("event", event), zap.Error(err))
	}
}

// ListOptions filters a notification listing.
type ListOptions struct {
	UnreadOnly bool
	Offset     int
	Limit      int
}

// List returns the recipient's notifications, newest first, and the total.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]View, int64, error) {
	scope := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", userID)
		if opts.UnreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Notification
	if err := scope().Preload("Actor").Order("created_at DESC").
		Offset(opts.Offset).Limit(opts.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	views := make([]View, len(rows))
	for i := range rows {
		views[i] = View{Notification: rows[i], Actor: rows[i].Actor.Public()}
	}
	return views, total, nil
}

// UnreadCount counts the recipient's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead marks one notification read. Someone else's notification is
// reported as missing.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, userID).Take(&n).Error
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return &n, nil
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&n).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	}).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// Delete soft-deletes one of the recipient's notifications.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
