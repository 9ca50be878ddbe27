package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/templui/evidencekit/internal/filemap"
	"github.com/templui/evidencekit/internal/ids"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/orphan"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/validation"
)

var (
	ErrEntryLocked   = errors.New("approved entries cannot be cleared")
	ErrInvalidStatus = errors.New("invalid entry status")
	ErrPageRequired  = errors.New("page key is required")
)

var entryStatuses = map[string]bool{
	model.EntryStatusDraft:     true,
	model.EntryStatusSubmitted: true,
	model.EntryStatusApproved:  true,
	model.EntryStatusRejected:  true,
}

// ClearResult reports an entry wipe. Errors lists "<fileID>: <message>" for
// files that could not be removed.
type ClearResult struct {
	DeletedFiles int           `json:"deleted_files"`
	Errors       []string      `json:"errors"`
	Orphans      orphan.Result `json:"orphans"`
}

type EntryService struct {
	entries   repository.EntryRepository
	files     repository.FileRepository
	evidence  *EvidenceService
	reclaimer *orphan.Reclaimer
	ghosts    *orphan.GhostCleaner
	locks     *EntryLocks

	sweepOnLoad bool
	sweeps      sync.WaitGroup
}

func NewEntryService(
	entries repository.EntryRepository,
	files repository.FileRepository,
	evidence *EvidenceService,
	reclaimer *orphan.Reclaimer,
	ghosts *orphan.GhostCleaner,
	locks *EntryLocks,
	sweepOnLoad bool,
) *EntryService {
	if locks == nil {
		locks = NewEntryLocks()
	}
	return &EntryService{
		locks:       locks,
		entries:     entries,
		files:       files,
		evidence:    evidence,
		reclaimer:   reclaimer,
		ghosts:      ghosts,
		sweepOnLoad: sweepOnLoad,
	}
}

// Create returns the entry of the page and period, creating a draft when there is none
func (s *EntryService) Create(ctx context.Context, session model.Session, pageKey string, year int, payload []byte) (*model.Entry, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if pageKey == "" {
		return nil, ErrPageRequired
	}
	err := validation.ValidatePageKey(pageKey)
	if err != nil {
		return nil, err
	}
	err = validation.ValidatePeriodYear(year)
	if err != nil {
		return nil, err
	}

	existing, err := s.entries.ByPage(ctx, session.UserID, pageKey, year)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}

	doc, err := model.NewDocument(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := &model.Entry{
		ID:         ids.NewUniqueID(),
		UserID:     session.UserID,
		PageKey:    pageKey,
		PeriodYear: year,
		Status:     model.EntryStatusDraft,
		Payload:    doc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.entries.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	slog.Info("entry created", "entry_id", entry.ID, "user_id", entry.UserID, "page_key", pageKey, "year", year)
	return entry, nil
}

// Get loads an entry and, when enabled, starts an orphan sweep for the user
func (s *EntryService) Get(ctx context.Context, session model.Session, id string) (*model.Entry, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}

	entry, err := s.entries.ByID(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}

	if s.sweepOnLoad && s.reclaimer != nil {
		s.sweeps.Add(1)
		go func() {
			defer s.sweeps.Done()
			_, err := s.reclaimer.Run(context.WithoutCancel(ctx), session)
			if err != nil {
				slog.Warn("orphan sweep failed", "user_id", session.UserID, "error", err)
			}
		}()
	}

	return entry, nil
}

// WaitSweeps blocks until background orphan sweeps have finished
func (s *EntryService) WaitSweeps() {
	s.sweeps.Wait()
}

// SavePayload replaces the page fields of an entry. The stored file mapping is
// kept; it is only changed through record uploads and removals.
func (s *EntryService) SavePayload(ctx context.Context, session model.Session, id string, payload []byte) (*model.Entry, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}

	doc, err := model.NewDocument(payload)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	entry, err := s.entries.ByID(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}

	m := filemap.New(filemap.Config{UserID: session.UserID, EntryID: entry.ID, PageKey: entry.PageKey}, nil, nil)
	m.LoadFromPayload(entry.Payload)
	merged, err := m.ToPayload(doc)
	if err != nil {
		return nil, err
	}

	err = s.entries.UpdatePayload(ctx, session.UserID, id, model.Document(merged))
	if err != nil {
		return nil, fmt.Errorf("failed to save payload: %w", err)
	}

	entry.Payload = model.Document(merged)
	entry.UpdatedAt = time.Now()
	return entry, nil
}

func (s *EntryService) UpdateStatus(ctx context.Context, session model.Session, id, status string) error {
	if !session.Authenticated() {
		return ErrUnauthenticated
	}
	if !entryStatuses[status] {
		return ErrInvalidStatus
	}
	return s.entries.UpdateStatus(ctx, session.UserID, id, status)
}

// Files lists the files of an entry, dropping rows whose blob has vanished
func (s *EntryService) Files(ctx context.Context, session model.Session, id string) ([]*model.File, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}

	ok, err := s.entries.Exists(ctx, session.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check entry: %w", err)
	}
	if !ok {
		return nil, repository.ErrEntryNotFound
	}

	files, err := s.files.Files(ctx, session.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	if s.ghosts != nil {
		files = s.ghosts.Clean(ctx, session.UserID, files)
	}
	return files, nil
}

// Clear deletes every file of an entry, then the entry, then reclaims whatever
// the user has left orphaned. Approved entries are refused.
func (s *EntryService) Clear(ctx context.Context, session model.Session, id string) (*ClearResult, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	entry, err := s.entries.ByID(ctx, session.UserID, id)
	if err != nil {
		return nil, err
	}
	if entry.Status == model.EntryStatusApproved {
		return nil, ErrEntryLocked
	}

	files, err := s.files.Files(ctx, session.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	res := &ClearResult{Errors: []string{}}
	for _, f := range files {
		err := s.evidence.Delete(ctx, session.UserID, f.ID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", f.ID, err))
			continue
		}
		res.DeletedFiles++
	}

	err = s.entries.Delete(ctx, session.UserID, id)
	if err != nil && !errors.Is(err, repository.ErrEntryNotFound) {
		return res, fmt.Errorf("failed to delete entry: %w", err)
	}

	if s.reclaimer != nil {
		orphans, err := s.reclaimer.Run(ctx, session)
		if err != nil {
			slog.Warn("orphan sweep after clear failed", "entry_id", id, "error", err)
		}
		res.Orphans = orphans
	}

	slog.Info("entry cleared", "entry_id", id, "deleted_files", res.DeletedFiles, "errors", len(res.Errors))
	return res, nil
}
