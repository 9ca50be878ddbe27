package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	EntryStatusDraft     = "draft"
	EntryStatusSubmitted = "submitted"
	EntryStatusApproved  = "approved"
	EntryStatusRejected  = "rejected"
)

// Entry is the parent entity evidence files hang off (one per page and period).
// Payload is a free-form document owned by the page; the file mapping lives in it.
type Entry struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"owner_id"`
	PageKey    string    `db:"page_key" json:"page_key"`
	PeriodYear int       `db:"period_year" json:"period_year"`
	Status     string    `db:"status" json:"status"`
	Payload    Document  `db:"payload" json:"payload"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Document is a raw JSON document stored in a text column
type Document []byte

var ErrInvalidDocument = errors.New("payload must be a JSON object")

// NewDocument validates raw as a JSON object. Empty input yields "{}".
func NewDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return Document("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrInvalidDocument
	}
	return Document(raw), nil
}

func (d Document) Value() (driver.Value, error) {
	if len(d) == 0 {
		return "{}", nil
	}
	return string(d), nil
}

func (d *Document) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append(Document(nil), v...)
	case string:
		*d = Document(v)
	default:
		return fmt.Errorf("unsupported payload type %T", value)
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	return d, nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	*d = append((*d)[0:0], b...)
	return nil
}
