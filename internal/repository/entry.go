package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/evidencekit/internal/model"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
)

const entryColumns = `id, user_id, page_key, period_year, status, payload, created_at, updated_at`

type EntryRepository interface {
	Create(ctx context.Context, entry *model.Entry) error
	ByID(ctx context.Context, userID, id string) (*model.Entry, error)
	ByPage(ctx context.Context, userID, pageKey string, year int) (*model.Entry, error)
	Exists(ctx context.Context, userID, id string) (bool, error)
	UpdatePayload(ctx context.Context, userID, id string, payload model.Document) error
	UpdateStatus(ctx context.Context, userID, id, status string) error
	Delete(ctx context.Context, userID, id string) error
}

type entryRepository struct {
	db *sqlx.DB
}

func NewEntryRepository(db *sqlx.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Create(ctx context.Context, entry *model.Entry) error {
	query := `INSERT INTO entries (` + entryColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.PageKey,
		entry.PeriodYear,
		entry.Status,
		entry.Payload,
		entry.CreatedAt,
		entry.UpdatedAt,
	)

	return err
}

func (r *entryRepository) ByID(ctx context.Context, userID, id string) (*model.Entry, error) {
	entry := &model.Entry{}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, entry, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *entryRepository) ByPage(ctx context.Context, userID, pageKey string, year int) (*model.Entry, error) {
	entry := &model.Entry{}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id = $1 AND page_key = $2 AND period_year = $3`

	err := r.db.GetContext(ctx, entry, query, userID, pageKey, year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *entryRepository) Exists(ctx context.Context, userID, id string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM entries WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &count, query, id, userID)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *entryRepository) UpdatePayload(ctx context.Context, userID, id string, payload model.Document) error {
	query := `UPDATE entries SET payload = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	return r.execOne(ctx, query, payload, time.Now(), id, userID)
}

func (r *entryRepository) UpdateStatus(ctx context.Context, userID, id, status string) error {
	query := `UPDATE entries SET status = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	return r.execOne(ctx, query, status, time.Now(), id, userID)
}

func (r *entryRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM entries WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, query, id, userID)
}

func (r *entryRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrEntryNotFound
	}

	return nil
}
