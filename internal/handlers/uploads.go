package handlers

import (
	stderrors "errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"go.uber.org/zap"
)

// Upload size limits per field kind.
const (
	maxVideoSize = 2 << 30
	maxImageSize = 10 << 20
)

var errNoFile = stderrors.New("no file")

// uploadFormFile stores the multipart file named field. It returns errNoFile
// when the field is absent and an *errors.APIError for bad input.
func (h *Handlers) uploadFormFile(c *gin.Context, field string, kind storage.Kind, folder, ownerID string) (*storage.UploadResult, error) {
	return uploadFormFile(c, h.uploader, field, kind, folder, ownerID)
}

func uploadFormFile(c *gin.Context, uploader storage.Uploader, field string, kind storage.Kind, folder, ownerID string) (*storage.UploadResult, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
			return nil, errNoFile
		}
		return nil, errors.BadRequest("invalid multipart body")
	}

	switch kind {
	case storage.KindVideo:
		if !util.IsValidVideoFile(header.Filename) {
			return nil, errors.ValidationError(field, "unsupported video format")
		}
		if header.Size > maxVideoSize {
			return nil, errors.ValidationError(field, "video is too large")
		}
	default:
		if !util.IsValidImageFile(header.Filename) {
			return nil, errors.ValidationError(field, "unsupported image format")
		}
		if header.Size > maxImageSize {
			return nil, errors.ValidationError(field, "image is too large")
		}
	}

	if uploader == nil {
		return nil, errors.ServiceUnavailable("storage")
	}

	tempPath, err := util.SaveUploadedFile(header)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempPath)

	m := metrics.Get()
	start := time.Now()
	res, err := uploader.Upload(c.Request.Context(), tempPath, kind, storage.UploadOptions{OwnerID: ownerID, Folder: folder})
	m.UploadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		m.UploadsTotal.WithLabelValues(string(kind), "error").Inc()
		logger.Log.Error("Upload failed",
			logger.WithUserID(ownerID),
			zap.String("field", field),
			zap.Error(err),
		)
		return nil, err
	}
	m.UploadsTotal.WithLabelValues(string(kind), "success").Inc()
	return res, nil
}

// deleteStored removes objects that are no longer referenced. Failures are
// logged; the maintenance worker does not retry these.
func (h *Handlers) deleteStored(c *gin.Context, keys ...string) {
	if h.uploader == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := h.uploader.Delete(c.Request.Context(), key); err != nil {
			logger.Log.Warn("Failed to delete stored object", zap.String("key", key), zap.Error(err))
		}
	}
}
