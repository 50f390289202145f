package storage

import (
	"context"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/media"
	"github.com/zfogg/vidshare/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProbingUploader fills UploadResult.Duration for videos before handing the
// file to the next uploader.
type ProbingUploader struct {
	next   Uploader
	prober media.Prober
}

// WithDuration wraps next with a prober.
func WithDuration(next Uploader, prober media.Prober) *ProbingUploader {
	return &ProbingUploader{next: next, prober: prober}
}

func (p *ProbingUploader) Upload(ctx context.Context, localPath string, kind Kind, opts UploadOptions) (res *UploadResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "storage.upload", attribute.String("media.kind", string(kind)))
	defer func() { telemetry.End(span, err) }()

	var duration float64
	if kind == KindVideo && p.prober != nil {
		info, err := p.prober.Probe(ctx, localPath)
		if err != nil {
			// Duration stays 0 when probing fails.
			logger.Log.Warn("Could not probe video", zap.Error(err))
		} else {
			duration = info.Duration
		}
	}

	res, err = p.next.Upload(ctx, localPath, kind, opts)
	if err != nil {
		return nil, err
	}
	res.Duration = duration
	span.SetAttributes(attribute.Float64("media.duration", duration))
	return res, nil
}

func (p *ProbingUploader) Delete(ctx context.Context, key string) error {
	return p.next.Delete(ctx, key)
}

var _ Uploader = (*ProbingUploader)(nil)
