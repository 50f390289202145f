// Package storage moves uploaded files into object storage.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the class of file being uploaded.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// UploadOptions place an object in the bucket.
type UploadOptions struct {
	OwnerID string
	// Folder groups objects by purpose: videos, thumbnails, avatars, covers.
	Folder string
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key         string  `json:"key"`
	URL         string  `json:"secureUrl"`
	Size        int64   `json:"size"`
	ContentType string  `json:"contentType"`
	Duration    float64 `json:"duration,omitempty"`
}

// Uploader stores local files and removes stored objects.
type Uploader interface {
	Upload(ctx context.Context, localPath string, kind Kind, opts UploadOptions) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// objectKey builds folder/yyyy/mm/owner/uuid.ext.
func objectKey(localPath string, kind Kind, opts UploadOptions, now time.Time) string {
	folder := opts.Folder
	if folder == "" {
		folder = string(kind) + "s"
	}
	owner := opts.OwnerID
	if owner == "" {
		owner = "anonymous"
	}
	ext := strings.ToLower(filepath.Ext(localPath))
	if ext == "" {
		ext = defaultExtension(kind)
	}
	return fmt.Sprintf("%s/%d/%02d/%s/%s%s", folder, now.Year(), now.Month(), owner, uuid.New().String(), ext)
}

func defaultExtension(kind Kind) string {
	if kind == KindVideo {
		return ".mp4"
	}
	return ".jpg"
}

// contentType returns the MIME type for a file extension.
func contentType(extension string) string {
	switch strings.ToLower(extension) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// cacheControl is long for immutable media: keys are never reused.
func cacheControl(kind Kind) string {
	if kind == KindVideo {
		return "public, max-age=31536000, immutable"
	}
	return "public, max-age=86400"
}

func publicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
