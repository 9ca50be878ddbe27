package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/templui/evidencekit/internal/filemap"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/repository"
)

// RecordUpload reports a record upload. Failed is set when some files could not
// be stored; FileIDs still lists the ones that were.
type RecordUpload struct {
	FileIDs []string `json:"file_ids"`
	Failed  string   `json:"failed,omitempty"`
}

// RecordRemoval reports a record removal. Files are only deleted when asked
// for, and never while another record still lists them.
type RecordRemoval struct {
	DeletedFiles int      `json:"deleted_files"`
	KeptFiles    int      `json:"kept_files"`
	Errors       []string `json:"errors"`
}

// RecordService drives the file mapping of record-list pages. Each call loads
// the entry's mapping, applies one change and persists it, holding a per-entry
// lock so concurrent requests do not lose each other's updates.
type RecordService struct {
	entries     repository.EntryRepository
	files       repository.FileRepository
	evidence    *EvidenceService
	concurrency int
	locks       *EntryLocks
}

// NewRecordService builds the facade. locks must be shared with the
// EntryService so payload saves and mapping changes do not interleave; nil
// gives the service its own.
func NewRecordService(entries repository.EntryRepository, files repository.FileRepository, evidence *EvidenceService, concurrency int, locks *EntryLocks) *RecordService {
	if locks == nil {
		locks = NewEntryLocks()
	}
	return &RecordService{
		entries:     entries,
		files:       files,
		evidence:    evidence,
		concurrency: concurrency,
		locks:       locks,
	}
}

func (s *RecordService) load(ctx context.Context, session model.Session, entryID string, category model.Category) (*model.Entry, *filemap.Map, error) {
	if !session.Authenticated() {
		return nil, nil, ErrUnauthenticated
	}
	if entryID == "" {
		return nil, nil, ErrMissingEntry
	}

	entry, err := s.entries.ByID(ctx, session.UserID, entryID)
	if err != nil {
		return nil, nil, err
	}

	m := filemap.New(filemap.Config{
		UserID:      session.UserID,
		EntryID:     entry.ID,
		PageKey:     entry.PageKey,
		Category:    category,
		Concurrency: s.concurrency,
	}, s.evidence, slog.Default())
	m.LoadFromPayload(entry.Payload)

	return entry, m, nil
}

func (s *RecordService) save(ctx context.Context, session model.Session, entry *model.Entry, m *filemap.Map) error {
	payload, err := m.ToPayload(entry.Payload)
	if err != nil {
		return err
	}

	err = s.entries.UpdatePayload(ctx, session.UserID, entry.ID, model.Document(payload))
	if err != nil {
		return fmt.Errorf("failed to save file mapping: %w", err)
	}

	entry.Payload = model.Document(payload)
	return nil
}

// Upload stores files for a record and records them in the entry's file mapping.
// groupIDs, when given, tags each file with every record of a group.
func (s *RecordService) Upload(ctx context.Context, session model.Session, entryID, recordID string, category model.Category, files []model.MemoryFile, groupIDs []string) (*RecordUpload, error) {
	unlock := s.locks.Lock(entryID)
	defer unlock()

	entry, m, err := s.load(ctx, session, entryID, category)
	if err != nil {
		return nil, err
	}

	var opts []filemap.UploadOption
	if len(groupIDs) > 0 {
		opts = append(opts, filemap.WithRecordIDs(groupIDs...))
	}

	uploaded, upErr := m.Upload(ctx, recordID, files, opts...)
	res := &RecordUpload{FileIDs: uploaded}
	if upErr != nil {
		res.Failed = upErr.Error()
	}
	if len(uploaded) == 0 {
		return res, nil
	}

	err = s.save(context.WithoutCancel(ctx), session, entry, m)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Files returns the files that belong to a record
func (s *RecordService) Files(ctx context.Context, session model.Session, entryID, recordID string) ([]*model.File, error) {
	_, m, err := s.load(ctx, session, entryID, "")
	if err != nil {
		return nil, err
	}

	all, err := s.files.Files(ctx, session.UserID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return m.Resolve(recordID, all), nil
}

// Remove drops a record from the entry's file mapping. The files stay in place
// unless deleteFiles is set; even then a file is kept while another record's
// mapping or tags still reference it.
func (s *RecordService) Remove(ctx context.Context, session model.Session, entryID, recordID string, deleteFiles bool) (*RecordRemoval, error) {
	unlock := s.locks.Lock(entryID)
	defer unlock()

	entry, m, err := s.load(ctx, session, entryID, "")
	if err != nil {
		return nil, err
	}

	var owned []*model.File
	if deleteFiles {
		all, err := s.files.Files(ctx, session.UserID, entryID)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		owned = m.Resolve(recordID, all)
	}

	m.RemoveRecord(recordID)
	ctx = context.WithoutCancel(ctx)
	err = s.save(ctx, session, entry, m)
	if err != nil {
		return nil, err
	}

	res := &RecordRemoval{Errors: []string{}}
	if len(owned) == 0 {
		return res, nil
	}

	referenced := make(map[string]bool)
	for _, fileIDs := range m.Mapping() {
		for _, id := range fileIDs {
			referenced[id] = true
		}
	}

	for _, f := range owned {
		if referenced[f.ID] || tagged(f, recordID) {
			res.KeptFiles++
			continue
		}
		err := s.evidence.Delete(ctx, session.UserID, f.ID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", f.ID, err))
			continue
		}
		res.DeletedFiles++
	}
	return res, nil
}

// tagged reports whether f is tagged with a record other than recordID
func tagged(f *model.File, recordID string) bool {
	return slices.ContainsFunc(f.RecordIDs, func(id string) bool { return id != recordID })
}
