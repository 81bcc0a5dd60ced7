package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

// ErrNotStaged is returned by Commit when no artifact is staged.
var ErrNotStaged = errors.New("no staged artifact")

// Writer replaces a local output folder with a freshly written artifact.
// It implements pipeline.Artifact and serves one run at a time.
type Writer struct {
	folder  string
	staging string
	rows    int
	logger  *slog.Logger
}

// NewWriter creates a Writer for the given output folder.
func NewWriter(folder string, logger *slog.Logger) *Writer {
	return &Writer{folder: filepath.Clean(folder), logger: logger}
}

// Stage writes the artifact into a sibling temporary directory. The output
// folder is not touched until Commit. A failed write leaves nothing behind.
func (w *Writer) Stage(ctx context.Context, report domain.Report) error {
	if err := w.Discard(); err != nil {
		return err
	}

	parent := filepath.Dir(w.folder)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(w.folder)+"-staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	if err := WriteArtifact(staging, report.Rows); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	w.staging = staging
	w.rows = len(report.Rows)
	w.logger.Debug("artifact staged", "output_folder", w.folder, "staging", staging)
	return nil
}

// Commit removes whatever the output folder held before and renames the
// staged artifact into its place.
func (w *Writer) Commit(ctx context.Context) error {
	if w.staging == "" {
		return ErrNotStaged
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(w.folder); err != nil {
		return fmt.Errorf("remove previous output: %w", err)
	}
	if err := os.Rename(w.staging, w.folder); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	w.staging = ""

	w.logger.Info("artifact written", "output_folder", w.folder, "rows", w.rows)
	return nil
}

// Discard removes the staged artifact, if any.
func (w *Writer) Discard() error {
	if w.staging == "" {
		return nil
	}
	staging := w.staging
	w.staging = ""
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}
