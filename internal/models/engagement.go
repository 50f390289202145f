package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// LikeKind discriminates the polymorphic like target.
type LikeKind string

const (
	LikeKindVideo   LikeKind = "video"
	LikeKindPost    LikeKind = "post"
	LikeKindComment LikeKind = "comment"
)

// Valid reports whether k names a likeable entity.
func (k LikeKind) Valid() bool {
	switch k {
	case LikeKindVideo, LikeKindPost, LikeKindComment:
		return true
	}
	return false
}

// Like is a join row between a user and one video, post or comment.
// At most one live row exists per (LikedBy, Kind, TargetID).
type Like struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	Kind      LikeKind       `gorm:"type:varchar(16);not null" json:"type"`
	TargetID  string         `gorm:"type:uuid;not null;index" json:"targetId"`
	LikedBy   string         `gorm:"type:uuid;not null;index" json:"likedBy"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	if !l.Kind.Valid() {
		return ErrInvalidLikeKind
	}
	return nil
}

var (
	ErrInvalidLikeKind  = errors.New("invalid like target type")
	ErrSelfSubscription = errors.New("cannot subscribe to your own channel")
)

// Subscription is a join row from a subscriber to a channel (another user).
type Subscription struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	SubscriberID string         `gorm:"type:uuid;not null;index" json:"subscriberId"`
	Subscriber   *User          `gorm:"foreignKey:SubscriberID" json:"subscriber,omitempty"`
	ChannelID    string         `gorm:"type:uuid;not null;index;check:chk_subscriptions_not_self,subscriber_id <> channel_id" json:"channelId"`
	Channel      *User          `gorm:"foreignKey:ChannelID" json:"channel,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate rejects self-subscription for every write path, not just the
// toggle endpoint.
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	if s.SubscriberID == s.ChannelID {
		return ErrSelfSubscription
	}
	return nil
}

// View records the first time a viewer (user id, or IP when anonymous)
// watched a video. Views are never deleted.
type View struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	VideoID   string    `gorm:"type:uuid;not null;index" json:"videoId"`
	ViewerID  *string   `gorm:"type:uuid" json:"viewerId,omitempty"`
	IP        *string   `gorm:"size:64" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (v *View) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}
