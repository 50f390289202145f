// Package maintenance runs the periodic housekeeping jobs of the API server.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenPurger removes expired password-reset tokens.
type TokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
}

// Worker purges expired reset tokens, repairs counter drift and deletes the
// media of videos that were removed long enough ago.
type Worker struct {
	db         *gorm.DB
	tokens     TokenPurger
	engagement *engagement.Service
	deleter    storage.Uploader
	interval   time.Duration
	retention  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Report summarizes one pass.
type Report struct {
	ResetTokensPurged int64            `json:"resetTokensPurged"`
	Drift             int              `json:"drift"`
	Reconciled        map[string]int64 `json:"reconciled,omitempty"`
	MediaPurged       int              `json:"mediaPurged"`
}

// NewWorker creates a worker. deleter may be nil to skip media purging.
func NewWorker(db *gorm.DB, tokens TokenPurger, eng *engagement.Service, deleter storage.Uploader, interval, retention time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		db:         db,
		tokens:     tokens,
		engagement: eng,
		deleter:    deleter,
		interval:   interval,
		retention:  retention,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the periodic maintenance loop
func (w *Worker) Start() {
	logger.Log.Info("Starting maintenance worker", zap.Duration("interval", w.interval))
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the loop and waits for a running pass to finish.
func (w *Worker) Stop() {
	logger.Log.Info("Stopping maintenance worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	// Run immediately on startup
	w.RunOnce(w.ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(w.ctx)
		case <-w.ctx.Done():
			return
		}
	}
}

// RunOnce performs every job once. Failures are logged and do not stop the
// remaining jobs.
func (w *Worker) RunOnce(ctx context.Context) Report {
	start := time.Now()
	var report Report

	if w.tokens != nil {
		n, err := w.tokens.PurgeExpiredResetTokens(ctx)
		if err != nil {
			logger.Log.Error("Failed to purge reset tokens", zap.Error(err))
		}
		report.ResetTokensPurged = n
	}

	if w.engagement != nil {
		w.repairDrift(ctx, &report)
	}

	if w.deleter != nil && w.retention > 0 {
		report.MediaPurged = w.purgeDeletedMedia(ctx)
	}

	logger.Log.Info("Maintenance pass completed",
		zap.Int64("reset_tokens_purged", report.ResetTokensPurged),
		zap.Int("drift", report.Drift),
		zap.Int("media_purged", report.MediaPurged),
		logger.WithDuration(time.Since(start)),
	)
	return report
}

func (w *Worker) repairDrift(ctx context.Context, report *Report) {
	drift, err := w.engagement.FindDrift(ctx)
	if err != nil {
		logger.Log.Error("Failed to scan counter drift", zap.Error(err))
		return
	}
	report.Drift = len(drift)
	if len(drift) == 0 {
		return
	}

	for _, d := range drift {
		logger.Log.Info("Counter drift candidate",
			zap.String("counter", d.Counter),
			zap.String("id", d.ID),
			zap.Int64("stored", d.Stored),
			zap.Int64("actual", d.Actual),
		)
	}

	fixed, err := w.engagement.ReconcileDrift(ctx, drift)
	if err != nil {
		logger.Log.Error("Failed to reconcile counters", zap.Error(err))
		return
	}
	report.Reconciled = fixed
}

// purgeDeletedMedia removes stored objects of videos soft-deleted before the
// retention window and forgets their keys.
func (w *Worker) purgeDeletedMedia(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-w.retention)

	var videos []models.Video
	if err := w.db.WithContext(ctx).Unscoped().
		Select("id", "video_key", "thumbnail_key").
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Where("video_key <> '' OR thumbnail_key <> ''").
		Limit(200).Find(&videos).Error; err != nil {
		logger.Log.Error("Failed to query deleted videos", zap.Error(err))
		return 0
	}

	purged := 0
	for _, v := range videos {
		failed := false
		for _, key := range []string{v.VideoKey, v.ThumbnailKey} {
			if key == "" {
				continue
			}
			if err := w.deleter.Delete(ctx, key); err != nil {
				logger.Log.Warn("Failed to delete stored media",
					logger.WithVideoID(v.ID), zap.String("key", key), zap.Error(err))
				metrics.Get().ErrorsTotal.WithLabelValues("storage_delete", "maintenance").Inc()
				failed = true
			}
		}
		if failed {
			continue
		}

		if err := w.db.WithContext(ctx).Unscoped().Model(&models.Video{}).Where("id = ?", v.ID).
			UpdateColumns(map[string]interface{}{"video_key": "", "thumbnail_key": ""}).Error; err != nil {
			logger.Log.Error("Failed to clear media keys", logger.WithVideoID(v.ID), zap.Error(err))
			continue
		}
		purged++
	}
	return purged
}
