package models

import (
	"time"

	"gorm.io/gorm"
)

// CommentTarget is what a comment hangs off.
type CommentTarget string

const (
	CommentOnVideo CommentTarget = "video"
	CommentOnPost  CommentTarget = "post"
)

func (t CommentTarget) Valid() bool {
	return t == CommentOnVideo || t == CommentOnPost
}

// Comment is a (possibly threaded) comment on a video or community post.
type Comment struct {
	ID         string        `gorm:"primaryKey;type:uuid" json:"id"`
	Content    string        `gorm:"type:text;not null" json:"content"`
	OwnerID    string        `gorm:"type:uuid;not null;index" json:"ownerId"`
	Owner      *User         `gorm:"foreignKey:OwnerID" json:"-"`
	TargetKind CommentTarget `gorm:"type:varchar(16);not null;index:idx_comments_target" json:"targetType"`
	TargetID   string        `gorm:"type:uuid;not null;index:idx_comments_target" json:"targetId"`
	ParentID   *string       `gorm:"type:uuid;index" json:"parentId,omitempty"`
	LikesCount int64         `gorm:"not null;default:0" json:"likesCount"`
	IsEdited   bool          `gorm:"not null" json:"isEdited"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

// Post is a text/image community post on a channel.
type Post struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID       string `gorm:"type:uuid;not null;index" json:"ownerId"`
	Owner         *User  `gorm:"foreignKey:OwnerID" json:"-"`
	Content       string `gorm:"type:text;not null" json:"content"`
	ImageURL      string `json:"imageUrl,omitempty"`
	LikesCount    int64  `gorm:"not null;default:0" json:"likesCount"`
	CommentsCount int64  `gorm:"not null;default:0" json:"commentsCount"`

	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

// Playlist is an ordered, owner-curated list of videos.
type Playlist struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string          `gorm:"not null;size:100" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	OwnerID     string          `gorm:"type:uuid;not null;index" json:"ownerId"`
	IsPublic    bool            `gorm:"not null" json:"isPublic"`
	Entries     []PlaylistEntry `gorm:"foreignKey:PlaylistID" json:"videos,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Playlist) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

// HasAccess reports whether userID may read the playlist.
func (p *Playlist) HasAccess(userID string) bool {
	return p.IsPublic || (userID != "" && p.OwnerID == userID)
}

// PlaylistEntry places a video at a 0-based position inside a playlist.
// Entries are ordering rows and are removed outright.
type PlaylistEntry struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	PlaylistID string    `gorm:"type:uuid;not null;uniqueIndex:idx_playlist_entries_video" json:"playlistId"`
	VideoID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_playlist_entries_video" json:"videoId"`
	Video      *Video    `gorm:"foreignKey:VideoID" json:"video,omitempty"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `json:"addedAt"`
}

func (e *PlaylistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

// NotificationType names the event behind a notification.
type NotificationType string

const (
	NotificationLike      NotificationType = "like"
	NotificationComment   NotificationType = "comment"
	NotificationReply     NotificationType = "reply"
	NotificationSubscribe NotificationType = "subscribe"
	NotificationNewVideo  NotificationType = "new_video"
)

// Notification tells a recipient that an actor did something to their content.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string           `gorm:"type:uuid;not null;index:idx_notifications_recipient" json:"recipientId"`
	ActorID     string           `gorm:"type:uuid;not null" json:"actorId"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"-"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	EntityKind  string           `gorm:"type:varchar(16)" json:"entityType,omitempty"`
	EntityID    string           `gorm:"type:uuid" json:"entityId,omitempty"`
	Message     string           `gorm:"size:500" json:"message"`
	IsRead      bool             `gorm:"not null;index:idx_notifications_recipient" json:"isRead"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`

	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}
