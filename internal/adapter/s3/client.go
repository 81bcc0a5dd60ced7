package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/couchcryptid/crime-district-report/internal/config"
)

// ErrInvalidURI is returned for locations that are not s3://bucket[/key].
var ErrInvalidURI = errors.New("invalid s3 uri")

// Client reads and writes objects on an S3-compatible store.
type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

// NewClient connects to the configured S3 endpoint with static credentials.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Client{mc: mc, logger: logger}, nil
}

// ParseURI splits an s3://bucket/key location. The key may be empty and never
// carries leading or trailing slashes.
func ParseURI(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, config.S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrInvalidURI, location)
	}
	return bucket, strings.Trim(key, "/"), nil
}

// Open streams the object at an s3:// location. Local paths are not accepted.
func (c *Client) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(location)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %q names a bucket, not an object", ErrInvalidURI, location)
	}

	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", location, err)
	}
	// GetObject is lazy; Stat surfaces a missing object before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", location, err)
	}
	return obj, nil
}

// list returns the keys stored under prefix.
func (c *Client) list(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for info := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	c.logger.Info("bucket created", "bucket", bucket)
	return nil
}
