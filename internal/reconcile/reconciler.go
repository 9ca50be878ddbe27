// Package reconcile replaces old evidence with new evidence per slot. A slot with
// no new files is kept as is; otherwise its existing files are deleted and the
// new ones uploaded. Slots are independent and never abort each other.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/templui/evidencekit/internal/metrics"
	"github.com/templui/evidencekit/internal/model"
	"golang.org/x/sync/errgroup"
)

var ErrMissingEntry = errors.New("entry id is required to reconcile files")

// Store is the file store the reconciler writes through
type Store interface {
	Upload(ctx context.Context, req model.UploadRequest) (*model.File, error)
	Delete(ctx context.Context, userID, fileID string) error
}

type Slot struct {
	Key      SlotKey
	Existing []*model.File
	New      []model.MemoryFile
	Category model.Category
}

type Options struct {
	UserID  string
	EntryID string
	PageKey string
	Period  int
	Debug   bool
}

// Result reports one slot. Error holds the first upload failure and is only set
// when every upload of the slot failed.
type Result struct {
	Key      SlotKey `json:"slot_key"`
	Deleted  int     `json:"deleted"`
	Uploaded int     `json:"uploaded"`
	Kept     int     `json:"kept"`
	Failed   int     `json:"failed"`
	Error    string  `json:"error,omitempty"`
}

type Totals struct {
	Slots    int `json:"slots"`
	Deleted  int `json:"deleted"`
	Uploaded int `json:"uploaded"`
	Kept     int `json:"kept"`
	Failed   int `json:"failed"`
	Errored  int `json:"errored"`
}

func Summarize(results []Result) Totals {
	t := Totals{Slots: len(results)}
	for _, r := range results {
		t.Deleted += r.Deleted
		t.Uploaded += r.Uploaded
		t.Kept += r.Kept
		t.Failed += r.Failed
		if r.Error != "" {
			t.Errored++
		}
	}
	return t
}

type Reconciler struct {
	store       Store
	concurrency int
	logger      *slog.Logger
}

func New(store Store, concurrency int, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		store:       store,
		concurrency: concurrency,
		logger:      logger.With("component", "reconcile"),
	}
}

// Run reconciles every slot and returns one result per slot in input order.
// Only a missing entry id fails the call.
func (r *Reconciler) Run(ctx context.Context, slots []Slot, opts Options) ([]Result, error) {
	if opts.EntryID == "" {
		return nil, ErrMissingEntry
	}

	log := r.logger.With("entry_id", opts.EntryID, "page_key", opts.PageKey, "period", opts.Period)
	if opts.Debug {
		log.Info("overwrite start", "slots", len(slots))
	}

	ctx = context.WithoutCancel(ctx)
	results := make([]Result, len(slots))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			results[i] = r.reconcileSlot(ctx, log, slot, opts)
			return nil
		})
	}
	_ = g.Wait()

	if opts.Debug {
		t := Summarize(results)
		log.Info("overwrite done",
			"deleted", t.Deleted,
			"uploaded", t.Uploaded,
			"kept", t.Kept,
			"failed", t.Failed,
		)
	}

	return results, nil
}

func (r *Reconciler) reconcileSlot(ctx context.Context, log *slog.Logger, slot Slot, opts Options) Result {
	res := Result{Key: slot.Key}
	category := CategoryFor(slot.Key, slot.Category)

	if len(slot.New) == 0 {
		res.Kept = len(slot.Existing)
		r.finish(log, slot, category, res, opts.Debug)
		return res
	}

	for _, old := range slot.Existing {
		if err := r.store.Delete(ctx, opts.UserID, old.ID); err != nil {
			log.Warn("failed to delete replaced file", "slot", slot.Key.String(), "file_id", old.ID, "error", err)
			continue
		}
		res.Deleted++
	}

	var month *int
	if m, ok := slot.Key.Month(); ok {
		month = &m
	}

	var firstErr error
	for _, f := range slot.New {
		_, err := r.store.Upload(ctx, model.UploadRequest{
			UserID:   opts.UserID,
			EntryID:  opts.EntryID,
			PageKey:  opts.PageKey,
			Category: category,
			Month:    month,
			File:     f,
		})
		if err != nil {
			log.Warn("failed to upload replacement file", "slot", slot.Key.String(), "filename", f.Filename, "error", err)
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Uploaded++
	}

	if res.Uploaded == 0 && firstErr != nil {
		res.Error = firstErr.Error()
	}

	r.finish(log, slot, category, res, opts.Debug)
	return res
}

func (r *Reconciler) finish(log *slog.Logger, slot Slot, category model.Category, res Result, debug bool) {
	metrics.ReconciledSlots.WithLabelValues(outcome(res)).Inc()

	if debug {
		log.Info("overwrite slot",
			"slot", slot.Key.String(),
			"category", category,
			"existing", len(slot.Existing),
			"new", len(slot.New),
			"deleted", res.Deleted,
			"uploaded", res.Uploaded,
			"kept", res.Kept,
			"failed", res.Failed,
		)
	}
}

func outcome(res Result) string {
	switch {
	case res.Uploaded == 0 && res.Failed == 0:
		return metrics.SlotKept
	case res.Failed == 0:
		return metrics.SlotReplaced
	case res.Uploaded == 0:
		return metrics.SlotFailed
	default:
		return metrics.SlotPartial
	}
}
