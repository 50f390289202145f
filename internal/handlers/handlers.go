package handlers

import (
	"time"

	"github.com/zfogg/vidshare/internal/cache"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/history"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/realtime"
	"github.com/zfogg/vidshare/internal/search"
	"github.com/zfogg/vidshare/internal/storage"
	"gorm.io/gorm"
)

// videoCacheTTL bounds how stale an anonymous video detail may be.
const videoCacheTTL = time.Minute

// Handlers contains all resource HTTP handlers for the API. Authentication
// lives in AuthHandlers.
type Handlers struct {
	db         *gorm.DB
	engagement *engagement.Service
	history    *history.Service
	uploader   storage.Uploader
	notifier   *notify.Service
	search     *search.Service
	cache      cache.Store
	realtime   *realtime.Handler
}

// NewHandlers creates a new handlers instance. Notifications are stored but
// not pushed and search falls back to SQL until the setters say otherwise.
func NewHandlers(db *gorm.DB, uploader storage.Uploader) *Handlers {
	return &Handlers{
		db:         db,
		engagement: engagement.NewService(db),
		history:    history.NewService(db),
		uploader:   uploader,
		notifier:   notify.NewService(db, nil),
		search:     search.NewService(nil, search.NewSQLIndex(db)),
	}
}

// Engagement exposes the engagement service for background jobs.
func (h *Handlers) Engagement() *engagement.Service {
	return h.engagement
}

// SetNotifier replaces the notification service, typically with one that
// pushes over the realtime hub.
func (h *Handlers) SetNotifier(n *notify.Service) {
	h.notifier = n
}

// SetSearch sets the video search service
func (h *Handlers) SetSearch(s *search.Service) {
	h.search = s
}

// SetCache enables response caching and the redis health check
func (h *Handlers) SetCache(store cache.Store) {
	h.cache = store
}

// SetRealtimeHandler sets the websocket handler for live notifications
func (h *Handlers) SetRealtimeHandler(rt *realtime.Handler) {
	h.realtime = rt
}
