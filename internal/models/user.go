package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account and, at the same time, a channel other users subscribe to.
type User struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	Username      string `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	FullName      string `gorm:"not null" json:"fullName"`
	Bio           string `gorm:"type:text" json:"bio"`
	AvatarURL     string `json:"avatar"`
	CoverImageURL string `json:"coverImage"`

	PasswordHash           string     `gorm:"not null" json:"-"`
	RefreshTokenHash       *string    `json:"-"`
	PasswordResetHash      *string    `gorm:"index" json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	// Denormalized count of active subscriptions where this user is the channel.
	SubscribersCount int64 `gorm:"not null;default:0" json:"subscribersCount"`

	// Most-recent-first video ids, at most MaxWatchHistory entries.
	WatchHistory   StringArray `gorm:"type:text" json:"-"`
	HistoryVersion int64       `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MaxWatchHistory bounds User.WatchHistory.
const MaxWatchHistory = 100

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

// PublicUser is the embedded owner summary on videos, comments and posts.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// Public strips the user down to what other users may see inline.
func (u *User) Public() *PublicUser {
	if u == nil || u.ID == "" {
		return nil
	}
	return &PublicUser{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
}
