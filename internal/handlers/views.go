package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/util"
	"go.uber.org/zap"
)

// LogView counts a view once per signed-in user, or once per IP for
// anonymous callers, and records the video in the caller's watch history.
func (h *Handlers) LogView(c *gin.Context) {
	videoID, ok := util.ParseID(c, "videoId")
	if !ok {
		return
	}
	viewer := engagement.Viewer{UserID: util.OptionalUserID(c), IP: c.ClientIP()}

	ctx := c.Request.Context()
	res, err := h.engagement.LogView(ctx, videoID, viewer)
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}

	if viewer.UserID != "" {
		if err := h.history.Add(ctx, viewer.UserID, videoID); err != nil {
			logger.Log.Warn("Failed to record watch history",
				logger.WithUserID(viewer.UserID),
				logger.WithVideoID(videoID),
				zap.Error(err),
			)
		}
	}

	util.RespondOK(c, res, "view recorded")
}
