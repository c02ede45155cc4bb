package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"time"

	"BriefToPack-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is the shared object store, set by InitMinIO from main.go.
// It stays nil when object storage is disabled in the config.
var Store *ObjectStore

// ObjectStore uploads pack exports and storyboard frame images to a MinIO
// bucket and hands back presigned download URLs.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

func InitMinIO() {
	cfg := config.AppConfig.MinIO
	if !cfg.Enabled {
		log.Println("object storage disabled, skipping MinIO init")
		return
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO init failed: %v", err)
	}
	Store = &ObjectStore{client: client, bucket: cfg.Bucket}
	log.Println("MinIO connected")
}

// Enabled reports whether uploads can be attempted. Safe on a nil receiver so
// callers do not have to care whether storage was configured.
func (s *ObjectStore) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("bucket %q created", s.bucket)
	}
	return nil
}

// UploadBytes uploads an in-memory blob and returns a presigned URL.
// An empty contentType falls back to the object name's extension.
func (s *ObjectStore) UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = contentTypeByExt(objectName)
	}
	return s.upload(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
}

// Upload streams a reader to the bucket, size -1 when unknown.
func (s *ObjectStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64) (string, error) {
	return s.upload(ctx, objectName, reader, size, contentTypeByExt(objectName))
}

func (s *ObjectStore) upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("object storage is not configured")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload to MinIO: %w", err)
	}
	return s.PresignedURL(ctx, objectName, 72*time.Hour)
}

// PresignedURL returns a time-limited download URL for an existing object.
func (s *ObjectStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("object storage is not configured")
	}
	reqParams := make(url.Values)
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign URL: %w", err)
	}
	return presigned.String(), nil
}

func contentTypeByExt(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".zip":
		return "application/zip"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
