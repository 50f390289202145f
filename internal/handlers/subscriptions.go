package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

// SubscriptionEntry is one side of a subscription in a listing.
type SubscriptionEntry struct {
	User         *models.PublicUser `json:"user"`
	SubscribedAt time.Time          `json:"subscribedAt"`
}

// ToggleSubscription subscribes the caller to a channel or unsubscribes them.
func (h *Handlers) ToggleSubscription(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	channelID, ok := util.ParseID(c, "channelId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	res, err := h.engagement.ToggleSubscription(ctx, userID, channelID)
	if err != nil {
		respondServiceError(c, err, "channel")
		return
	}
	if res.Active {
		notify.LogFailure(h.notifier.OnSubscribe(ctx, userID, channelID), "subscribe")
	}

	msg := "unsubscribed successfully"
	if res.Active {
		msg = "subscribed successfully"
	}
	util.RespondOK(c, gin.H{"isSubscribed": res.Active, "subscribersCount": res.Count}, msg)
}

// GetChannelSubscribers lists who subscribes to a channel, newest first.
func (h *Handlers) GetChannelSubscribers(c *gin.Context) {
	channelID, ok := util.ParseID(c, "channelId")
	if !ok {
		return
	}
	h.listSubscriptions(c, "channel_id = ?", channelID, "Subscriber", func(s *models.Subscription) *models.User {
		return s.Subscriber
	})
}

// GetSubscribedChannels lists the channels a user subscribes to.
func (h *Handlers) GetSubscribedChannels(c *gin.Context) {
	userID, ok := util.ParseID(c, "userId")
	if !ok {
		return
	}
	h.listSubscriptions(c, "subscriber_id = ?", userID, "Channel", func(s *models.Subscription) *models.User {
		return s.Channel
	})
}

func (h *Handlers) listSubscriptions(c *gin.Context, cond, id, preload string, other func(*models.Subscription) *models.User) {
	page := util.ParsePageRequest(c)
	scope := func() *gorm.DB {
		return h.db.WithContext(c.Request.Context()).Model(&models.Subscription{}).Where(cond, id)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "subscriptions")
		return
	}
	var subs []models.Subscription
	if err := scope().Preload(preload).
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&subs).Error; err != nil {
		respondServiceError(c, err, "subscriptions")
		return
	}

	entries := make([]SubscriptionEntry, 0, len(subs))
	for i := range subs {
		u := other(&subs[i])
		if u == nil {
			continue
		}
		entries = append(entries, SubscriptionEntry{User: u.Public(), SubscribedAt: subs[i].CreatedAt})
	}
	util.RespondPaginated(c, entries, util.NewPagination(page, total), "subscriptions fetched successfully")
}
