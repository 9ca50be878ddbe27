package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// File is a persisted evidence object. It carries up to three association
// encodings; RecordIDs is authoritative whenever it is present (non-nil).
type File struct {
	ID          string   `db:"id" json:"id"`
	UserID      string   `db:"user_id" json:"owner_id"`  // Who owns/created this file
	EntryID     string   `db:"entry_id" json:"entry_id"` // Parent entity
	PageKey     string   `db:"page_key" json:"page_key"`
	Category    Category `db:"category" json:"file_type"`
	Month       *int     `db:"month" json:"month,omitempty"`
	Filename    string   `db:"filename" json:"file_name"`
	MimeType    string   `db:"mime_type" json:"mime_type"`
	Size        int64    `db:"size" json:"file_size"`
	StoragePath string   `db:"storage_path" json:"file_path"`

	RecordIDs      StringList `db:"record_ids" json:"record_ids,omitempty"`
	RecordID       *string    `db:"record_id" json:"record_id,omitempty"`
	LegacyRecordID *string    `db:"legacy_record_id" json:"recordId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasRecordIDs reports whether the current many-to-one encoding is present
func (f *File) HasRecordIDs() bool {
	return f.RecordIDs != nil
}

// BelongsTo reports whether recordID is listed in RecordIDs
func (f *File) BelongsTo(recordID string) bool {
	return slices.Contains(f.RecordIDs, recordID)
}

// LegacyMatch reports whether one of the single-id encodings equals recordID.
// Callers must only consult it when HasRecordIDs is false.
func (f *File) LegacyMatch(recordID string) bool {
	if f.RecordID != nil && *f.RecordID == recordID {
		return true
	}
	return f.LegacyRecordID != nil && *f.LegacyRecordID == recordID
}

// StringList is stored as a JSON array column. A SQL NULL scans to nil.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported record_ids type %T", value)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("invalid record_ids: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// UploadRequest describes one file to be stored and linked to an entry
type UploadRequest struct {
	UserID    string
	EntryID   string
	PageKey   string
	Category  Category
	Month     *int
	RecordID  string
	RecordIDs []string
	File      MemoryFile
}
