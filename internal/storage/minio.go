package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zfogg/vidshare/internal/logger"
	"go.uber.org/zap"
)

// MinioConfig configures a self-hosted S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL overrides the URL prefix handed to clients.
	PublicURL string
}

// MinioUploader stores objects in MinIO.
type MinioUploader struct {
	client  *minio.Client
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewMinioUploader connects and creates the bucket, with a public-read
// policy, when it does not exist yet.
func NewMinioUploader(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("failed to set bucket policy: %w", err)
		}
		logger.Log.Info("Created storage bucket", zap.String("bucket", cfg.Bucket))
	}

	baseURL := cfg.PublicURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioUploader{client: client, bucket: cfg.Bucket, baseURL: baseURL, now: time.Now}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, localPath string, kind Kind, opts UploadOptions) (*UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload: %w", err)
	}

	key := objectKey(localPath, kind, opts, u.now())
	ct := contentType(filepath.Ext(key))

	info, err := u.client.PutObject(ctx, u.bucket, key, f, stat.Size(), minio.PutObjectOptions{
		ContentType:  ct,
		CacheControl: cacheControl(kind),
		UserMetadata: map[string]string{
			"owner-id":  opts.OwnerID,
			"file-type": string(kind),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to minio: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         publicURL(u.baseURL, key),
		Size:        info.Size,
		ContentType: ct,
	}, nil
}

func (u *MinioUploader) Delete(ctx context.Context, key string) error {
	err := u.client.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) && minioErr.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

func publicReadPolicy(bucket string) string {
	return `{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::` + bucket + `/*"]
	}]
}`
}

var _ Uploader = (*MinioUploader)(nil)
