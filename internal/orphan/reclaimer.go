// Package orphan removes evidence files whose parent entry is gone, and file rows
// whose blob is missing.
package orphan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/templui/evidencekit/internal/metrics"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/repository"
)

var ErrUnauthenticated = errors.New("no authenticated user")

type FileStore interface {
	AllUserFiles(ctx context.Context, userID string) ([]*model.File, error)
	Delete(ctx context.Context, userID, id string) error
}

type EntryStore interface {
	Exists(ctx context.Context, userID, id string) (bool, error)
}

type BlobStore interface {
	Delete(ctx context.Context, paths ...string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type Result struct {
	DeletedCount int      `json:"deleted_count"`
	Errors       []string `json:"errors"`
}

type Reclaimer struct {
	files   FileStore
	entries EntryStore
	blobs   BlobStore
	logger  *slog.Logger
}

func NewReclaimer(files FileStore, entries EntryStore, blobs BlobStore, logger *slog.Logger) *Reclaimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reclaimer{
		files:   files,
		entries: entries,
		blobs:   blobs,
		logger:  logger.With("component", "orphan"),
	}
}

// Run deletes every file of the session user whose entry no longer exists.
// Files are handled one at a time; a failure on one file never stops the pass.
// Only a missing user or an unreadable file list fail the call.
func (r *Reclaimer) Run(ctx context.Context, session model.Session) (Result, error) {
	res := Result{Errors: []string{}}

	if !session.Authenticated() {
		return res, ErrUnauthenticated
	}
	userID := session.UserID
	ctx = context.WithoutCancel(ctx)

	files, err := r.files.AllUserFiles(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to list user files: %w", err)
	}

	// parent lookups are cached per run; failed checks are not
	exists := make(map[string]bool)

	for _, f := range files {
		ok, cached := exists[f.EntryID]
		if !cached {
			ok, err = r.entries.Exists(ctx, userID, f.EntryID)
			if err != nil {
				r.logger.Warn("failed to check parent entry", "file_id", f.ID, "entry_id", f.EntryID, "error", err)
				continue
			}
			exists[f.EntryID] = ok
		}
		if ok {
			continue
		}

		if err := r.blobs.Delete(ctx, f.StoragePath); err != nil {
			r.logger.Warn("failed to delete orphan blob", "file_id", f.ID, "path", f.StoragePath, "error", err)
		}

		err := r.files.Delete(ctx, userID, f.ID)
		if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
			r.logger.Error("failed to delete orphan file", "file_id", f.ID, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", f.ID, err))
			continue
		}

		res.DeletedCount++
		metrics.ReclaimedOrphans.Inc()
	}

	if res.DeletedCount > 0 || len(res.Errors) > 0 {
		r.logger.Info("orphan files reclaimed", "user_id", userID, "scanned", len(files), "deleted", res.DeletedCount, "errors", len(res.Errors))
	}

	return res, nil
}
