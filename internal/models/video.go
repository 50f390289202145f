package models

import (
	"time"

	"gorm.io/gorm"
)

// Video is an uploaded video and its playback metadata.
type Video struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID      string  `gorm:"type:uuid;not null;index" json:"ownerId"`
	Owner        *User   `gorm:"foreignKey:OwnerID" json:"-"`
	Title        string  `gorm:"not null;size:200" json:"title"`
	Description  string  `gorm:"type:text" json:"description"`
	VideoURL     string  `gorm:"not null" json:"videoUrl"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	VideoKey     string  `json:"-"`
	ThumbnailKey string  `json:"-"`
	Duration     float64 `gorm:"not null;default:0" json:"duration"`

	// Denormalized counters, kept equal to their join-row counts.
	Views         int64 `gorm:"not null;default:0;index" json:"views"`
	LikesCount    int64 `gorm:"not null;default:0" json:"likesCount"`
	CommentsCount int64 `gorm:"not null;default:0" json:"commentsCount"`

	IsPublished     bool `gorm:"not null;index" json:"isPublished"`
	SubscribersOnly bool `gorm:"not null" json:"subscribersOnly"`

	Tags []Tag `gorm:"many2many:video_tags;" json:"tags"`

	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = generateUUID()
	}
	return nil
}

// IsOwnedBy reports whether userID owns the video.
func (v *Video) IsOwnedBy(userID string) bool {
	return userID != "" && v.OwnerID == userID
}

// VisibleTo limits a videos query to the rows viewerID may see: everything
// they own, plus published videos that are public or come from a channel
// they subscribe to. An empty viewerID sees public published videos only.
// The query must address the videos table by name.
func VisibleTo(viewerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == "" {
			return db.Where("videos.is_published = ? AND videos.subscribers_only = ?", true, false)
		}
		return db.Where(`(videos.owner_id = ? OR (videos.is_published = ? AND (videos.subscribers_only = ? OR EXISTS (
			SELECT 1 FROM subscriptions
			WHERE subscriptions.subscriber_id = ? AND subscriptions.channel_id = videos.owner_id AND subscriptions.deleted_at IS NULL))))`,
			viewerID, true, false, viewerID)
	}
}

// Tag labels videos. Names are lowercase and unique among live tags.
type Tag struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string         `gorm:"not null;size:50" json:"name"`
	Description string         `gorm:"size:300" json:"description,omitempty"`
	CreatedByID *string        `gorm:"type:uuid;index" json:"createdBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	return nil
}
