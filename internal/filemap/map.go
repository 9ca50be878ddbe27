// Package filemap keeps the association between user-editable records and the
// evidence files uploaded for them. The association is held in memory, rebuilt
// from an entry payload, and written back into it.
package filemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/templui/evidencekit/internal/model"
	"golang.org/x/sync/errgroup"
)

// payloadKey is the payload field holding the record → file ids mapping
const payloadKey = "fileMapping"

var ErrMissingEntry = errors.New("entry id is required to upload files")

// Uploader stores one file and returns the persisted row
type Uploader interface {
	Upload(ctx context.Context, req model.UploadRequest) (*model.File, error)
}

type Config struct {
	UserID      string
	EntryID     string
	PageKey     string
	Category    model.Category
	Concurrency int
}

// Map is safe for concurrent use. Reads never rewrite stored rows.
type Map struct {
	cfg      Config
	uploader Uploader
	logger   *slog.Logger

	mu      sync.Mutex
	records map[string][]string
}

func New(cfg Config, uploader Uploader, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Map{
		cfg:      cfg,
		uploader: uploader,
		logger:   logger.With("component", "filemap", "entry_id", cfg.EntryID),
		records:  make(map[string][]string),
	}
}

type uploadOptions struct {
	entryID   string
	recordIDs []string
}

type UploadOption func(*uploadOptions)

// WithEntryID overrides the map's default parent entry for one upload
func WithEntryID(id string) UploadOption {
	return func(o *uploadOptions) {
		o.entryID = id
	}
}

// WithRecordIDs tags every uploaded file with all ids of a record group
func WithRecordIDs(ids ...string) UploadOption {
	return func(o *uploadOptions) {
		o.recordIDs = slices.Clone(ids)
	}
}

// Upload stores files for recordID and appends the new file ids to the record
// once every attempt has finished. Failed files are left out of the mapping; the
// returned error joins their failures while the returned ids hold the successes.
func (m *Map) Upload(ctx context.Context, recordID string, files []model.MemoryFile, opts ...UploadOption) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}

	o := uploadOptions{entryID: m.cfg.EntryID}
	for _, opt := range opts {
		opt(&o)
	}
	if o.entryID == "" {
		return nil, ErrMissingEntry
	}

	recordIDs := o.recordIDs
	if len(recordIDs) == 0 {
		recordIDs = []string{recordID}
	}

	// a batch in flight is finished even when the caller goes away
	ctx = context.WithoutCancel(ctx)

	stored := make([]string, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			file, err := m.uploader.Upload(ctx, model.UploadRequest{
				UserID:    m.cfg.UserID,
				EntryID:   o.entryID,
				PageKey:   m.cfg.PageKey,
				Category:  m.cfg.Category,
				RecordID:  recordID,
				RecordIDs: slices.Clone(recordIDs),
				File:      f,
			})
			if err != nil {
				m.logger.Warn("file upload failed", "record_id", recordID, "memory_id", f.ID, "filename", f.Filename, "error", err)
				errs[i] = fmt.Errorf("%s (%s): %w", f.Filename, f.ID, err)
				return nil
			}
			stored[i] = file.ID
			return nil
		})
	}
	_ = g.Wait()

	uploaded := make([]string, 0, len(files))
	for _, id := range stored {
		if id != "" {
			uploaded = append(uploaded, id)
		}
	}

	if len(uploaded) > 0 {
		m.mu.Lock()
		m.records[recordID] = append(m.records[recordID], uploaded...)
		m.mu.Unlock()
	}

	m.logger.Debug("record files uploaded", "record_id", recordID, "uploaded", len(uploaded), "requested", len(files))

	return uploaded, errors.Join(errs...)
}

// Resolve returns the files of recordID from allFiles using the first matching
// encoding: record_ids, then record_id or the legacy field among files without
// record_ids, then the in-memory mapping. Tiers are never merged.
func (m *Map) Resolve(recordID string, allFiles []*model.File) []*model.File {
	var tagged []*model.File
	for _, f := range allFiles {
		if f.HasRecordIDs() && f.BelongsTo(recordID) {
			tagged = append(tagged, f)
		}
	}
	if len(tagged) > 0 {
		return tagged
	}

	var legacy []*model.File
	for _, f := range allFiles {
		if !f.HasRecordIDs() && f.LegacyMatch(recordID) {
			legacy = append(legacy, f)
		}
	}
	if len(legacy) > 0 {
		return legacy
	}

	m.mu.Lock()
	ids := slices.Clone(m.records[recordID])
	m.mu.Unlock()

	byID := make(map[string]*model.File, len(allFiles))
	for _, f := range allFiles {
		byID[f.ID] = f
	}

	mapped := []*model.File{}
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			mapped = append(mapped, f)
		}
	}
	return mapped
}

// FileIDs returns the ids mapped to recordID
func (m *Map) FileIDs(recordID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records[recordID])
}

// RemoveRecord drops the mapping of a single record
func (m *Map) RemoveRecord(recordID string) {
	m.mu.Lock()
	delete(m.records, recordID)
	m.mu.Unlock()
}

// Mapping returns a deep copy of the current mapping
func (m *Map) Mapping() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string, len(m.records))
	for k, v := range m.records {
		out[k] = slices.Clone(v)
	}
	return out
}

// LoadFromPayload replaces the mapping with the one stored in doc. Missing or
// malformed data yields an empty mapping; malformed records and ids are dropped.
func (m *Map) LoadFromPayload(doc []byte) {
	records := parseMapping(doc)

	m.mu.Lock()
	m.records = records
	m.mu.Unlock()

	m.logger.Debug("file mapping loaded", "records", len(records))
}

func parseMapping(doc []byte) map[string][]string {
	records := make(map[string][]string)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return records
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(fields[payloadKey], &raw); err != nil {
		return records
	}

	for recordID, value := range raw {
		var items []any
		if err := json.Unmarshal(value, &items); err != nil || items == nil {
			continue
		}
		ids := make([]string, 0, len(items))
		for _, item := range items {
			if id, ok := item.(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
		records[recordID] = ids
	}
	return records
}

// ToPayload writes the mapping into doc, keeping every other field
func (m *Map) ToPayload(doc []byte) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse payload: %w", err)
		}
		if fields == nil {
			fields = make(map[string]json.RawMessage)
		}
	}

	mapping, err := json.Marshal(m.Mapping())
	if err != nil {
		return nil, fmt.Errorf("failed to encode file mapping: %w", err)
	}
	fields[payloadKey] = mapping

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}
