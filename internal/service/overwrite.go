package service

import (
	"context"
	"fmt"

	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/reconcile"
	"github.com/templui/evidencekit/internal/repository"
)

// SlotInput is one slot of an overwrite request. Existing files are looked up
// from the entry.
type SlotInput struct {
	Key      reconcile.SlotKey
	Category model.Category
	New      []model.MemoryFile
}

type OverwriteReport struct {
	Results []reconcile.Result `json:"results"`
	Totals  reconcile.Totals   `json:"totals"`
}

type OverwriteService struct {
	entries    repository.EntryRepository
	files      repository.FileRepository
	reconciler *reconcile.Reconciler
	debug      bool
}

func NewOverwriteService(entries repository.EntryRepository, files repository.FileRepository, reconciler *reconcile.Reconciler, debug bool) *OverwriteService {
	return &OverwriteService{
		entries:    entries,
		files:      files,
		reconciler: reconciler,
		debug:      debug,
	}
}

// Run replaces the evidence of every slot that received new files and keeps the rest
func (s *OverwriteService) Run(ctx context.Context, session model.Session, entryID string, inputs []SlotInput) (*OverwriteReport, error) {
	if !session.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if entryID == "" {
		return nil, ErrMissingEntry
	}

	entry, err := s.entries.ByID(ctx, session.UserID, entryID)
	if err != nil {
		return nil, err
	}

	all, err := s.files.Files(ctx, session.UserID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	slots := make([]reconcile.Slot, 0, len(inputs))
	for _, in := range inputs {
		slots = append(slots, reconcile.Slot{
			Key:      in.Key,
			Category: in.Category,
			New:      in.New,
			Existing: slotFiles(all, in),
		})
	}

	results, err := s.reconciler.Run(ctx, slots, reconcile.Options{
		UserID:  session.UserID,
		EntryID: entry.ID,
		PageKey: entry.PageKey,
		Period:  entry.PeriodYear,
		Debug:   s.debug,
	})
	if err != nil {
		return nil, err
	}

	return &OverwriteReport{Results: results, Totals: reconcile.Summarize(results)}, nil
}

// slotFiles picks the files occupying a slot: same category, and for a Numbered
// key the same month. Files tied to records never occupy a slot.
func slotFiles(all []*model.File, in SlotInput) []*model.File {
	category := reconcile.CategoryFor(in.Key, in.Category)
	month, numbered := in.Key.Month()

	var out []*model.File
	for _, f := range all {
		if f.Category != category || len(f.RecordIDs) > 0 || f.RecordID != nil || f.LegacyRecordID != nil {
			continue
		}
		if numbered {
			if f.Month == nil || *f.Month != month {
				continue
			}
		} else if f.Month != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
