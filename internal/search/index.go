// Package search finds videos by text. Elasticsearch serves queries when it is
// configured; the SQL index answers otherwise and whenever Elasticsearch fails.
package search

import (
	"context"
	"time"

	"github.com/zfogg/vidshare/internal/models"
)

// VideoDoc is the indexed form of a published video. Subscriber-only
// documents match only when Query.Channels holds the owner.
type VideoDoc struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Tags            []string  `json:"tags"`
	OwnerID         string    `json:"owner_id"`
	OwnerUsername   string    `json:"owner_username"`
	SubscribersOnly bool      `json:"subscribers_only"`
	Views           int64     `json:"views"`
	LikesCount      int64     `json:"likes_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Query is a paginated text search run on behalf of ViewerID (empty when
// anonymous). Channels lists the owners whose subscriber-only videos the
// viewer may see: the viewer and every channel they subscribe to.
type Query struct {
	Text     string
	Offset   int
	Limit    int
	ViewerID string
	Channels []string
}

// Result lists matching video ids, best match first.
type Result struct {
	IDs   []string
	Total int64
}

// Index stores and queries video documents.
type Index interface {
	IndexVideo(ctx context.Context, doc VideoDoc) error
	DeleteVideo(ctx context.Context, id string) error
	SearchVideos(ctx context.Context, q Query) (*Result, error)
}

// DocFromVideo builds the document for v. Owner and Tags must be loaded.
func DocFromVideo(v *models.Video) VideoDoc {
	doc := VideoDoc{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		OwnerID:         v.OwnerID,
		SubscribersOnly: v.SubscribersOnly,
		Views:           v.Views,
		LikesCount:      v.LikesCount,
		CreatedAt:       v.CreatedAt,
		Tags:            make([]string, 0, len(v.Tags)),
	}
	if v.Owner != nil {
		doc.OwnerUsername = v.Owner.Username
	}
	for _, t := range v.Tags {
		doc.Tags = append(doc.Tags, t.Name)
	}
	return doc
}
