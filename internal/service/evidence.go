package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/templui/evidencekit/internal/ids"
	"github.com/templui/evidencekit/internal/metrics"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/storage"
	"github.com/templui/evidencekit/internal/validation"
)

var (
	ErrMissingEntry    = errors.New("entry id is required")
	ErrUnauthenticated = errors.New("authentication required")
	ErrInMemoryFile    = errors.New("file has not been uploaded yet")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
)

// EvidenceService stores evidence blobs and their rows. It is the single writer
// for files; the reconciler, record mappings and the HTTP layer all go through it.
type EvidenceService struct {
	files       repository.FileRepository
	entries     repository.EntryRepository
	storage     storage.Storage
	constraints validation.FileConstraints
	urlTTL      time.Duration
	now         func() time.Time
}

func NewEvidenceService(files repository.FileRepository, entries repository.EntryRepository, store storage.Storage, maxSize int64, urlTTL time.Duration) *EvidenceService {
	constraints := validation.EvidenceConstraints
	if maxSize > 0 {
		constraints.MaxSize = maxSize
	}
	return &EvidenceService{
		files:       files,
		entries:     entries,
		storage:     store,
		constraints: constraints,
		urlTTL:      urlTTL,
		now:         time.Now,
	}
}

// Upload validates the file, stores the blob and inserts its row. When the row
// cannot be written the blob is removed again.
func (s *EvidenceService) Upload(ctx context.Context, req model.UploadRequest) (*model.File, error) {
	file, err := s.upload(ctx, req)
	metrics.Uploads.WithLabelValues(metrics.Result(err)).Inc()
	if err == nil {
		metrics.UploadBytes.Add(float64(file.Size))
	}
	return file, err
}

func (s *EvidenceService) upload(ctx context.Context, req model.UploadRequest) (*model.File, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if req.EntryID == "" {
		return nil, ErrMissingEntry
	}

	mimeType, err := validation.ValidateFile(req.File, s.constraints)
	if err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return nil, model.ErrInvalidCategory
	}
	if req.Month != nil && (*req.Month < 1 || *req.Month > 12) {
		return nil, ErrInvalidMonth
	}

	entry, err := s.entries.ByID(ctx, req.UserID, req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	pageKey := req.PageKey
	if pageKey == "" {
		pageKey = entry.PageKey
	}

	now := s.now()
	filename := validation.SanitizeFilename(req.File.Filename)
	path, err := storagePath(req.UserID, pageKey, entry.PeriodYear, req.Month, now, filename)
	if err != nil {
		return nil, err
	}

	size := req.File.Size
	if size == 0 {
		size = int64(len(req.File.Data))
	}

	storedPath, err := s.storage.Put(ctx, path, bytes.NewReader(req.File.Data), mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	file := &model.File{
		ID:          ids.NewUniqueID(),
		UserID:      req.UserID,
		EntryID:     req.EntryID,
		PageKey:     pageKey,
		Category:    category,
		Month:       req.Month,
		Filename:    req.File.Filename,
		MimeType:    mimeType,
		Size:        size,
		StoragePath: storedPath,
		CreatedAt:   now,
	}
	switch {
	case len(req.RecordIDs) > 0:
		file.RecordIDs = model.StringList(slices.Clone(req.RecordIDs))
	case req.RecordID != "":
		file.RecordIDs = model.StringList{req.RecordID}
	}
	if req.RecordID != "" {
		recordID := req.RecordID
		file.RecordID = &recordID
	}

	err = s.files.Create(ctx, file)
	if err != nil {
		// the insert failed, so nothing references the blob
		delErr := s.storage.Delete(context.WithoutCancel(ctx), storedPath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storedPath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	slog.Debug("evidence uploaded", "file_id", file.ID, "entry_id", file.EntryID, "category", file.Category, "size", file.Size)
	return file, nil
}

// storagePath builds {user}/{pageKey}/{year}/{month?}/{millis}_{6hex}_{name}
func storagePath(userID, pageKey string, year int, month *int, now time.Time, filename string) (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate path suffix: %w", err)
	}

	path := userID + "/" + pageKey + "/" + strconv.Itoa(year) + "/"
	if month != nil {
		path += strconv.Itoa(*month) + "/"
	}
	path += strconv.FormatInt(now.UnixMilli(), 10) + "_" + hex.EncodeToString(suffix) + "_" + filename

	if err := validation.ValidatePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// Delete removes a file owned by userID. A file that is already gone counts as
// deleted. The blob is removed best effort before the row.
func (s *EvidenceService) Delete(ctx context.Context, userID, fileID string) error {
	err := s.delete(ctx, userID, fileID)
	metrics.Deletes.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

func (s *EvidenceService) delete(ctx context.Context, userID, fileID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if ids.IsEphemeral(fileID) {
		return ErrInMemoryFile
	}

	file, err := s.files.ByID(ctx, userID, fileID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	delErr := s.storage.Delete(ctx, file.StoragePath)
	if delErr != nil {
		slog.Error("failed to delete file from storage", "error", delErr, "path", file.StoragePath)
	}

	err = s.files.Delete(ctx, userID, fileID)
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return nil
}

// URL returns a temporary download link for a file owned by userID
func (s *EvidenceService) URL(ctx context.Context, userID, fileID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}

	file, err := s.files.ByID(ctx, userID, fileID)
	if err != nil {
		return "", err
	}

	url, err := s.storage.SignedURL(ctx, file.StoragePath, s.urlTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	return url, nil
}

func (s *EvidenceService) ByID(ctx context.Context, userID, fileID string) (*model.File, error) {
	return s.files.ByID(ctx, userID, fileID)
}
