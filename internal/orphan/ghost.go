package orphan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/templui/evidencekit/internal/metrics"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/repository"
)

const DefaultRetryDelay = 800 * time.Millisecond

type RowDeleter interface {
	Delete(ctx context.Context, userID, id string) error
}

type BlobChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// GhostCleaner drops file rows whose blob is gone. A blob reported missing is
// checked once more after RetryDelay so fresh uploads that are not yet visible
// survive.
type GhostCleaner struct {
	RetryDelay time.Duration

	rows   RowDeleter
	blobs  BlobChecker
	logger *slog.Logger
}

func NewGhostCleaner(rows RowDeleter, blobs BlobChecker, retryDelay time.Duration, logger *slog.Logger) *GhostCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &GhostCleaner{
		RetryDelay: retryDelay,
		rows:       rows,
		blobs:      blobs,
		logger:     logger.With("component", "ghost"),
	}
}

// Clean returns the files whose blob exists and deletes the rows of the rest.
// A blob that cannot be checked is kept.
func (c *GhostCleaner) Clean(ctx context.Context, userID string, files []*model.File) []*model.File {
	valid := make([]*model.File, 0, len(files))

	for _, f := range files {
		if c.present(ctx, f) {
			valid = append(valid, f)
			continue
		}

		c.logger.Warn("ghost file confirmed", "file_id", f.ID, "path", f.StoragePath)
		err := c.rows.Delete(ctx, userID, f.ID)
		if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
			c.logger.Error("failed to delete ghost file", "file_id", f.ID, "error", err)
			continue
		}
		metrics.GhostFiles.Inc()
	}

	return valid
}

func (c *GhostCleaner) present(ctx context.Context, f *model.File) bool {
	ok, err := c.blobs.Exists(ctx, f.StoragePath)
	if err != nil {
		c.logger.Warn("failed to check blob", "file_id", f.ID, "error", err)
		return true
	}
	if ok {
		return true
	}

	select {
	case <-ctx.Done():
		return true
	case <-time.After(c.RetryDelay):
	}

	ok, err = c.blobs.Exists(ctx, f.StoragePath)
	if err != nil {
		c.logger.Warn("failed to check blob", "file_id", f.ID, "error", err)
		return true
	}
	if ok {
		c.logger.Debug("blob appeared on retry", "file_id", f.ID)
	}
	return ok
}
