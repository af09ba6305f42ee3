package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	s3SaveTimeout   = 30 * time.Second
	s3DeleteTimeout = 15 * time.Second
)

// S3Storage keeps archived reports in an S3-compatible bucket (AWS, R2, MinIO).
type S3Storage struct {
	client *minio.Client
	bucket string
	// base is the URL prefix objects are published under, without a
	// trailing slash.
	base string
}

// splitEndpoint accepts either a bare host or a full URL and returns the host
// and whether TLS should be used.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid S3 endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("incomplete S3 config")
	}
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	cli, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       "auto",
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	switch {
	case base != "" && !strings.Contains(base, "://"):
		base = "https://" + base
	case base == "" && cfg.ForcePathStyle:
		base = "https://" + host + "/" + cfg.Bucket
	case base == "":
		base = "https://" + cfg.Bucket + "." + host
	}
	return &S3Storage{client: cli, bucket: cfg.Bucket, base: base}, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	ctx, cancel := withDefaultTimeout(ctx, s3SaveTimeout)
	defer cancel()
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := withDefaultTimeout(ctx, s3SaveTimeout)
	defer cancel()

	size := int64(-1)
	if br, ok := r.(*bytes.Reader); ok {
		size = int64(br.Len())
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=300",
	})
	if err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := withDefaultTimeout(ctx, s3DeleteTimeout)
	defer cancel()
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3Storage) PublicURL(key string) string {
	return s.base + "/" + strings.TrimPrefix(key, "/")
}

func (s *S3Storage) IsLocal() bool { return false }

// withDefaultTimeout bounds ctx by d unless it already carries a deadline.
func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
