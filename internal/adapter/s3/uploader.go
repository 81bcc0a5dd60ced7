package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"

	"github.com/couchcryptid/crime-district-report/internal/adapter/parquetfile"
	"github.com/couchcryptid/crime-district-report/internal/domain"
)

// ErrNotStaged is returned by Commit when no artifact is staged.
var ErrNotStaged = errors.New("no staged artifact")

// Uploader replaces the artifact stored under an s3:// output prefix.
// It implements pipeline.Artifact and serves one run at a time.
type Uploader struct {
	client   *Client
	location string
	bucket   string
	prefix   string
	staging  string
	rows     int
	logger   *slog.Logger
}

// NewUploader creates an Uploader for the given s3:// output location. The
// location must name a prefix inside the bucket, since Commit clears
// everything under it.
func NewUploader(client *Client, location string, logger *slog.Logger) (*Uploader, error) {
	bucket, prefix, err := ParseURI(location)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: %q has no output prefix", ErrInvalidURI, location)
	}
	return &Uploader{client: client, location: location, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Stage writes the artifact to a local temporary directory. Nothing is sent
// to the bucket until Commit.
func (u *Uploader) Stage(ctx context.Context, report domain.Report) error {
	if err := u.Discard(); err != nil {
		return err
	}

	staging, err := os.MkdirTemp("", "crime-report-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := parquetfile.WriteArtifact(staging, report.Rows); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	u.staging = staging
	u.rows = len(report.Rows)
	return nil
}

// Commit clears the output prefix and uploads the data file followed by the
// success marker. Object stores have no rename, so readers must wait for the
// marker. The local staging directory is removed once the upload succeeds.
func (u *Uploader) Commit(ctx context.Context) error {
	if u.staging == "" {
		return ErrNotStaged
	}
	if err := u.client.ensureBucket(ctx, u.bucket); err != nil {
		return err
	}

	existing, err := u.client.list(ctx, u.bucket, listPrefix(u.prefix))
	if err != nil {
		return err
	}
	for _, key := range removalOrder(existing) {
		if err := u.client.mc.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", key, err)
		}
	}

	for _, name := range parquetfile.ArtifactFiles() {
		key := objectKey(u.prefix, name)
		_, err := u.client.mc.FPutObject(ctx, u.bucket, key, filepath.Join(u.staging, name), minio.PutObjectOptions{
			ContentType: contentType(name),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	if err := u.Discard(); err != nil {
		u.logger.Warn("remove staging dir", "error", err)
	}
	u.logger.Info("artifact uploaded", "output_folder", u.location, "rows", u.rows, "replaced_objects", len(existing))
	return nil
}

// Discard removes the local staged artifact, if any.
func (u *Uploader) Discard() error {
	if u.staging == "" {
		return nil
	}
	staging := u.staging
	u.staging = ""
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}

func listPrefix(prefix string) string {
	return prefix + "/"
}

func objectKey(prefix, name string) string {
	return path.Join(prefix, name)
}

// removalOrder deletes success markers first so a half-cleared prefix never
// looks complete.
func removalOrder(keys []string) []string {
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if path.Base(k) == parquetfile.SuccessFile {
			ordered = append(ordered, k)
		}
	}
	for _, k := range keys {
		if path.Base(k) != parquetfile.SuccessFile {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

func contentType(name string) string {
	if name == parquetfile.SuccessFile {
		return "text/plain"
	}
	return "application/vnd.apache.parquet"
}
