package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"gorm.io/gorm"
)

// PlaylistResponse is a playlist with its visible videos in order.
type PlaylistResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	OwnerID     string          `json:"ownerId"`
	IsPublic    bool            `json:"isPublic"`
	VideosCount int             `json:"videosCount"`
	Videos      []VideoResponse `json:"videos"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// toPlaylistResponse renders p. Entries whose video was filtered out while
// preloading are skipped.
func toPlaylistResponse(p *models.Playlist) PlaylistResponse {
	resp := PlaylistResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		IsPublic:    p.IsPublic,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Videos:      []VideoResponse{},
	}
	for _, e := range p.Entries {
		if e.Video == nil {
			continue
		}
		resp.Videos = append(resp.Videos, toVideoResponse(*e.Video))
	}
	resp.VideosCount = len(resp.Videos)
	return resp
}

type createPlaylistRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=100"`
	Description string `json:"description" binding:"max=1000"`
	IsPublic    *bool  `json:"isPublic"`
}

// CreatePlaylist creates an empty playlist. Playlists are public unless
// isPublic is false.
func (h *Handlers) CreatePlaylist(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req createPlaylistRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	playlist := models.Playlist{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     userID,
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&playlist).Error; err != nil {
		respondServiceError(c, err, "playlist")
		return
	}
	util.RespondCreated(c, toPlaylistResponse(&playlist), "playlist created successfully")
}

// GetPlaylist returns a playlist with its videos. Private playlists are
// reported missing to everyone but the owner.
func (h *Handlers) GetPlaylist(c *gin.Context) {
	playlistID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	viewerID := util.OptionalUserID(c)
	playlist, err := h.loadPlaylist(c, playlistID, viewerID)
	if err != nil {
		respondServiceError(c, err, "playlist")
		return
	}
	if !playlist.HasAccess(viewerID) {
		util.RespondNotFound(c, "playlist")
		return
	}
	util.RespondOK(c, toPlaylistResponse(playlist), "playlist fetched successfully")
}

// GetUserPlaylists lists a user's playlists. Private ones only appear for
// the owner.
func (h *Handlers) GetUserPlaylists(c *gin.Context) {
	ownerID, ok := util.ParseID(c, "userId")
	if !ok {
		return
	}
	viewerID := util.OptionalUserID(c)
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		q := h.db.WithContext(c.Request.Context()).Model(&models.Playlist{}).Where("owner_id = ?", ownerID)
		if viewerID != ownerID {
			q = q.Where("is_public = ?", true)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "playlists")
		return
	}
	var playlists []models.Playlist
	if err := scope().
		Scopes(withEntries(viewerID)).
		Order("updated_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&playlists).Error; err != nil {
		respondServiceError(c, err, "playlists")
		return
	}

	out := make([]PlaylistResponse, len(playlists))
	for i := range playlists {
		out[i] = toPlaylistResponse(&playlists[i])
	}
	util.RespondPaginated(c, out, util.NewPagination(page, total), "playlists fetched successfully")
}

type updatePlaylistRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	IsPublic    *bool   `json:"isPublic"`
}

// UpdatePlaylist renames or re-describes the caller's playlist.
func (h *Handlers) UpdatePlaylist(c *gin.Context) {
	playlist, ok := h.ownedPlaylist(c)
	if !ok {
		return
	}
	var req updatePlaylistRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Playlist{}).
		Where("id = ?", playlist.ID).Updates(updates).Error; err != nil {
		respondServiceError(c, err, "playlist")
		return
	}
	h.respondPlaylist(c, playlist.ID, "playlist updated successfully")
}

// DeletePlaylist removes the caller's playlist and its entries.
func (h *Handlers) DeletePlaylist(c *gin.Context) {
	playlist, ok := h.ownedPlaylist(c)
	if !ok {
		return
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", playlist.ID).Delete(&models.PlaylistEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Playlist{}, "id = ?", playlist.ID).Error
	})
	if err != nil {
		respondServiceError(c, err, "playlist")
		return
	}
	util.RespondOK(c, gin.H{"id": playlist.ID}, "playlist deleted successfully")
}

// AddVideoToPlaylist appends a video to the end of the caller's playlist.
func (h *Handlers) AddVideoToPlaylist(c *gin.Context) {
	playlist, ok := h.ownedPlaylist(c)
	if !ok {
		return
	}
	videoID, ok := util.ParseID(c, "videoId")
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Select("id", "owner_id", "is_published").Take(&video, "id = ?", videoID).Error; err != nil {
			return err
		}
		if !video.IsPublished && !video.IsOwnedBy(playlist.OwnerID) {
			return gorm.ErrRecordNotFound
		}

		var present int64
		if err := tx.Model(&models.PlaylistEntry{}).
			Where("playlist_id = ? AND video_id = ?", playlist.ID, videoID).
			Count(&present).Error; err != nil {
			return err
		}
		if present > 0 {
			return errors.Conflict("video is already in the playlist")
		}

		var next int
		if err := tx.Model(&models.PlaylistEntry{}).
			Where("playlist_id = ?", playlist.ID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.PlaylistEntry{PlaylistID: playlist.ID, VideoID: videoID, Position: next}).Error; err != nil {
			return err
		}
		return touchPlaylist(tx, playlist.ID)
	})
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}
	h.respondPlaylist(c, playlist.ID, "video added to playlist")
}

// RemoveVideoFromPlaylist removes a video and closes the gap it leaves.
func (h *Handlers) RemoveVideoFromPlaylist(c *gin.Context) {
	playlist, ok := h.ownedPlaylist(c)
	if !ok {
		return
	}
	videoID, ok := util.ParseID(c, "videoId")
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var entry models.PlaylistEntry
		if err := tx.Take(&entry, "playlist_id = ? AND video_id = ?", playlist.ID, videoID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PlaylistEntry{}).
			Where("playlist_id = ? AND position > ?", playlist.ID, entry.Position).
			Update("position", gorm.Expr("position - 1")).Error; err != nil {
			return err
		}
		return touchPlaylist(tx, playlist.ID)
	})
	if err != nil {
		respondServiceError(c, err, "playlist video")
		return
	}
	h.respondPlaylist(c, playlist.ID, "video removed from playlist")
}

func touchPlaylist(tx *gorm.DB, id string) error {
	return tx.Model(&models.Playlist{}).Where("id = ?", id).Update("updated_at", time.Now().UTC()).Error
}

// withEntries preloads entries in position order with the videos viewerID
// may see. Entries for other videos come back with a nil Video.
func withEntries(viewerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
			Preload("Entries.Video", models.VisibleTo(viewerID)).
			Preload("Entries.Video.Owner")
	}
}

func (h *Handlers) loadPlaylist(c *gin.Context, id, viewerID string) (*models.Playlist, error) {
	var playlist models.Playlist
	err := h.db.WithContext(c.Request.Context()).
		Scopes(withEntries(viewerID)).
		First(&playlist, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (h *Handlers) respondPlaylist(c *gin.Context, id, message string) {
	playlist, err := h.loadPlaylist(c, id, util.OptionalUserID(c))
	if err != nil {
		respondServiceError(c, err, "playlist")
		return
	}
	util.RespondOK(c, toPlaylistResponse(playlist), message)
}

func (h *Handlers) ownedPlaylist(c *gin.Context) (*models.Playlist, bool) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}
	playlistID, ok := util.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	var playlist models.Playlist
	if err := h.db.WithContext(c.Request.Context()).First(&playlist, "id = ?", playlistID).Error; err != nil {
		respondServiceError(c, err, "playlist")
		return nil, false
	}
	if playlist.OwnerID != userID {
		if !playlist.IsPublic {
			util.RespondNotFound(c, "playlist")
			return nil, false
		}
		util.RespondForbidden(c, "only the owner can modify this playlist")
		return nil, false
	}
	return &playlist, true
}
