package storage

import (
	"context"
	"errors"
	"io/fs"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"go.uber.org/zap"
)

// ErrUnavailable is returned without calling the store while the breaker is open.
var ErrUnavailable = errors.New("object storage unavailable")

// BreakerSettings tune when the breaker opens and how long it stays open.
type BreakerSettings struct {
	// MinRequests in the current interval before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
	Interval     time.Duration
	// Timeout before a half-open probe is allowed.
	Timeout time.Duration
}

// DefaultBreakerSettings opens at 60% failures over at least 5 uploads and
// probes again after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MinRequests: 5, FailureRatio: 0.6, Interval: time.Minute, Timeout: 30 * time.Second}
}

// BreakerUploader fails uploads fast while the underlying store keeps
// failing. It also records upload metrics. Requests are never retried.
type BreakerUploader struct {
	next Uploader
	cb   *gobreaker.CircuitBreaker[*UploadResult]
}

// NewBreakerUploader wraps next.
func NewBreakerUploader(next Uploader, name string, s BreakerSettings) *BreakerUploader {
	cb := gobreaker.NewCircuitBreaker[*UploadResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Local file problems and cancelled requests say nothing about the store.
			var pathErr *fs.PathError
			return err == nil || errors.As(err, &pathErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Storage circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerUploader{next: next, cb: cb}
}

func (b *BreakerUploader) Upload(ctx context.Context, localPath string, kind Kind, opts UploadOptions) (*UploadResult, error) {
	m := metrics.Get()
	start := time.Now()

	res, err := b.cb.Execute(func() (*UploadResult, error) {
		return b.next.Upload(ctx, localPath, kind, opts)
	})
	m.UploadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		m.UploadsTotal.WithLabelValues(string(kind), "rejected").Inc()
		return nil, ErrUnavailable
	}
	if err != nil {
		m.UploadsTotal.WithLabelValues(string(kind), "error").Inc()
		logger.Log.Error("Upload failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}
	m.UploadsTotal.WithLabelValues(string(kind), "success").Inc()
	return res, nil
}

// Delete is best effort cleanup and bypasses the breaker.
func (b *BreakerUploader) Delete(ctx context.Context, key string) error {
	return b.next.Delete(ctx, key)
}

// State reports the breaker state for health checks.
func (b *BreakerUploader) State() string {
	return b.cb.State().String()
}

var _ Uploader = (*BreakerUploader)(nil)
