package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/util"
)

// GetNotifications lists the caller's notifications, newest first.
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePageRequest(c)
	views, total, err := h.notifier.List(c.Request.Context(), userID, notify.ListOptions{
		UnreadOnly: util.ParseBool(c.Query("unreadOnly"), false),
		Offset:     page.Offset(),
		Limit:      page.Limit,
	})
	if err != nil {
		respondServiceError(c, err, "notifications")
		return
	}
	util.RespondPaginated(c, views, util.NewPagination(page, total), "notifications fetched successfully")
}

// GetUnreadCount returns the number of unread notifications.
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifier.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "notifications")
		return
	}
	util.RespondOK(c, gin.H{"unread": n}, "unread count fetched successfully")
}

// MarkNotificationRead marks one notification read.
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	id, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	n, err := h.notifier.MarkRead(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err, "notification")
		return
	}
	util.RespondOK(c, n, "notification marked as read")
}

// MarkAllNotificationsRead marks every unread notification read.
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	updated, err := h.notifier.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "notifications")
		return
	}
	util.RespondOK(c, gin.H{"updated": updated}, "all notifications marked as read")
}

// DeleteNotification removes one of the caller's notifications.
func (h *Handlers) DeleteNotification(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	id, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.notifier.Delete(c.Request.Context(), userID, id); err != nil {
		respondServiceError(c, err, "notification")
		return
	}
	util.RespondOK(c, gin.H{"id": id}, "notification deleted")
}

// NotificationsSocket upgrades to the live notification stream.
func (h *Handlers) NotificationsSocket(c *gin.Context) {
	if h.realtime == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("realtime"))
		return
	}
	h.realtime.Serve(c)
}
