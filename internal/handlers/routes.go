package handlers

import (
	"github.com/gin-gonic/gin"
)

// RouteMiddleware is the per-group middleware the route table needs.
// Optional limiters may be nil.
type RouteMiddleware struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	AuthLimit    gin.HandlerFunc
	UploadLimit  gin.HandlerFunc
	ViewLimit    gin.HandlerFunc
}

func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// RegisterRoutes mounts the auth and account endpoints under api.
func (a *AuthHandlers) RegisterRoutes(api *gin.RouterGroup, mw RouteMiddleware) {
	authGroup := api.Group("/auth")
	{
		public := authGroup.Group("", chain(mw.AuthLimit)...)
		public.POST("/register", a.Register)
		public.POST("/login", a.Login)
		public.POST("/refresh-token", a.RefreshToken)
		public.POST("/forgot-password", a.ForgotPassword)
		public.POST("/reset-password", a.ResetPassword)

		private := authGroup.Group("", mw.Auth)
		private.POST("/logout", a.Logout)
		private.GET("/me", a.Me)
		private.POST("/change-password", a.ChangePassword)
	}

	me := api.Group("/users/me", mw.Auth)
	{
		me.PATCH("", a.UpdateMe)
		me.PATCH("/avatar", chain(mw.UploadLimit, a.UpdateAvatar)...)
		me.PATCH("/cover", chain(mw.UploadLimit, a.UpdateCover)...)
	}
}

// RegisterRoutes mounts every resource endpoint under api.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup, mw RouteMiddleware) {
	users := api.Group("/users")
	{
		users.GET("/me/watch-history", mw.Auth, h.GetWatchHistory)
		users.DELETE("/me/watch-history", mw.Auth, h.ClearWatchHistory)
		users.GET("/:id", mw.OptionalAuth, h.GetChannel)
		users.GET("/:id/videos", mw.OptionalAuth, h.GetChannelVideos)
	}

	videos := api.Group("/videos")
	{
		videos.GET("", mw.OptionalAuth, h.ListVideos)
		videos.GET("/:id", mw.OptionalAuth, h.GetVideo)
		videos.POST("", chain(mw.Auth, mw.UploadLimit, h.PublishVideo)...)
		videos.PATCH("/:id", mw.Auth, h.UpdateVideo)
		videos.DELETE("/:id", mw.Auth, h.DeleteVideo)
		videos.PATCH("/:id/publish", mw.Auth, h.TogglePublishStatus)
	}

	likes := api.Group("/likes", mw.Auth)
	{
		likes.GET("/videos", h.GetLikedVideos)
		likes.POST("/:type/:id", h.ToggleLike)
		likes.GET("/:type/:id/status", h.GetLikeStatus)
	}

	subs := api.Group("/subscriptions")
	{
		subs.POST("/toggle/:channelId", mw.Auth, h.ToggleSubscription)
		subs.GET("/channels/:channelId/subscribers", h.GetChannelSubscribers)
		subs.GET("/users/:userId/channels", h.GetSubscribedChannels)
	}

	api.POST("/views/:videoId", chain(mw.ViewLimit, mw.OptionalAuth, h.LogView)...)

	comments := api.Group("/comments")
	{
		comments.GET("/:kind/:targetId", mw.OptionalAuth, h.ListComments)
		comments.POST("/:kind/:targetId", mw.Auth, h.AddComment)
		comments.PATCH("/:id", mw.Auth, h.UpdateComment)
		comments.DELETE("/:id", mw.Auth, h.DeleteComment)
	}

	posts := api.Group("/posts")
	{
		posts.POST("", chain(mw.Auth, mw.UploadLimit, h.CreatePost)...)
		posts.GET("/users/:userId", h.GetUserPosts)
		posts.GET("/:id", mw.OptionalAuth, h.GetPost)
		posts.PATCH("/:id", mw.Auth, h.UpdatePost)
		posts.DELETE("/:id", mw.Auth, h.DeletePost)
	}

	playlists := api.Group("/playlists")
	{
		playlists.POST("", mw.Auth, h.CreatePlaylist)
		playlists.GET("/users/:userId", mw.OptionalAuth, h.GetUserPlaylists)
		playlists.GET("/:id", mw.OptionalAuth, h.GetPlaylist)
		playlists.PATCH("/:id", mw.Auth, h.UpdatePlaylist)
		playlists.DELETE("/:id", mw.Auth, h.DeletePlaylist)
		playlists.POST("/:id/videos/:videoId", mw.Auth, h.AddVideoToPlaylist)
		playlists.DELETE("/:id/videos/:videoId", mw.Auth, h.RemoveVideoFromPlaylist)
	}

	tags := api.Group("/tags")
	{
		tags.GET("", h.ListTags)
		tags.POST("", mw.Auth, h.CreateTag)
		tags.GET("/:name/videos", mw.OptionalAuth, h.GetTagVideos)
		tags.DELETE("/:id", mw.Auth, h.DeleteTag)
	}

	notifications := api.Group("/notifications", mw.Auth)
	{
		notifications.GET("", h.GetNotifications)
		notifications.GET("/unread-count", h.GetUnreadCount)
		notifications.GET("/ws", h.NotificationsSocket)
		notifications.PATCH("/read-all", h.MarkAllNotificationsRead)
		notifications.PATCH("/:id/read", h.MarkNotificationRead)
		notifications.DELETE("/:id", h.DeleteNotification)
	}

	analytics := api.Group("/analytics", mw.Auth)
	{
		analytics.GET("/channel", h.GetChannelStats)
		analytics.GET("/channel/views", h.GetChannelViews)
		analytics.GET("/videos/:id", h.GetVideoStats)
	}

	api.GET("/feed/subscriptions", mw.Auth, h.GetSubscriptionFeed)
	api.GET("/search/videos", mw.OptionalAuth, h.SearchVideos)
}
