package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/evidencekit/internal/model"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

const fileColumns = `id, user_id, entry_id, page_key, category, month, filename, mime_type, size, storage_path,
	record_ids, record_id, legacy_record_id, created_at`

// FileRepository stores evidence file rows. Every call is scoped to the owning user.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	ByID(ctx context.Context, userID, id string) (*model.File, error)
	Files(ctx context.Context, userID, entryID string) ([]*model.File, error)
	AllUserFiles(ctx context.Context, userID string) ([]*model.File, error)
	Delete(ctx context.Context, userID, id string) error
}

type fileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	query := `INSERT INTO files (` + fileColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID,
		file.UserID,
		file.EntryID,
		file.PageKey,
		file.Category,
		file.Month,
		file.Filename,
		file.MimeType,
		file.Size,
		file.StoragePath,
		file.RecordIDs,
		file.RecordID,
		file.LegacyRecordID,
		file.CreatedAt,
	)

	return err
}

func (r *fileRepository) ByID(ctx context.Context, userID, id string) (*model.File, error) {
	file := &model.File{}
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, file, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (r *fileRepository) Files(ctx context.Context, userID, entryID string) ([]*model.File, error) {
	var files []*model.File
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 AND entry_id = $2 ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &files, query, userID, entryID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (r *fileRepository) AllUserFiles(ctx context.Context, userID string) ([]*model.File, error) {
	var files []*model.File
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &files, query, userID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (r *fileRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrFileNotFound
	}

	return nil
}
