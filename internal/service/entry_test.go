package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/orphan"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/validation"
)

type entryFixture struct {
	svc      *EntryService
	locks    *EntryLocks
	evidence *EvidenceService
	files    *memFileRepo
	entries  *memEntryRepo
	store    *memStorage
}

func newEntryFixture(t *testing.T, sweepOnLoad bool) *entryFixture {
	t.Helper()
	files := newMemFileRepo()
	entries := newMemEntryRepo(newEntry("e1", "u1"))
	store := newMemStorage()
	evidence := NewEvidenceService(files, entries, store, 0, time.Minute)
	reclaimer := orphan.NewReclaimer(files, entries, store, nil)
	ghosts := orphan.NewGhostCleaner(files, store, time.Millisecond, nil)
	locks := NewEntryLocks()
	return &entryFixture{
		svc:      NewEntryService(entries, files, evidence, reclaimer, ghosts, locks, sweepOnLoad),
		locks:    locks,
		evidence: evidence,
		files:    files,
		entries:  entries,
		store:    store,
	}
}

var u1 = model.Session{UserID: "u1"}

func TestEntryCreate_GetOrCreate(t *testing.T) {
	fx := newEntryFixture(t, false)

	created, err := fx.svc.Create(context.Background(), u1, "gas", 2025, []byte(`{"rows":[]}`))
	require.NoError(t, err)
	assert.Equal(t, model.EntryStatusDraft, created.Status)
	assert.JSONEq(t, `{"rows":[]}`, string(created.Payload))

	again, err := fx.svc.Create(context.Background(), u1, "gas", 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = fx.svc.Create(context.Background(), u1, "", 2025, nil)
	assert.ErrorIs(t, err, ErrPageRequired)

	_, err = fx.svc.Create(context.Background(), u1, "../gas", 2025, nil)
	assert.ErrorIs(t, err, validation.ErrInvalidPageKey)

	_, err = fx.svc.Create(context.Background(), u1, "gas", 25, nil)
	assert.ErrorIs(t, err, validation.ErrInvalidYear)

	_, err = fx.svc.Create(context.Background(), u1, "diesel", 2025, []byte(`[1]`))
	assert.ErrorIs(t, err, model.ErrInvalidDocument)

	_, err = fx.svc.Create(context.Background(), model.Session{}, "gas", 2025, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEntryGet_SweepsOrphans(t *testing.T) {
	fx := newEntryFixture(t, true)

	require.NoError(t, fx.files.Create(context.Background(), &model.File{ID: "orphan", UserID: "u1", EntryID: "deleted", StoragePath: "p"}))

	e, err := fx.svc.Get(context.Background(), u1, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)

	fx.svc.WaitSweeps()
	assert.Zero(t, fx.files.count())

	_, err = fx.svc.Get(context.Background(), model.Session{UserID: "u2"}, "e1")
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
}

func TestEntrySavePayload_KeepsFileMapping(t *testing.T) {
	fx := newEntryFixture(t, false)
	fx.entries.rows["e1"].Payload = model.Document(`{"fileMapping":{"r1":["f1"]},"rows":[1]}`)

	e, err := fx.svc.SavePayload(context.Background(), u1, "e1", []byte(`{"rows":[1,2],"fileMapping":{"evil":["x"]}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[1,2],"fileMapping":{"r1":["f1"]}}`, string(e.Payload))
	assert.JSONEq(t, `{"rows":[1,2],"fileMapping":{"r1":["f1"]}}`, fx.entries.payload("e1"))

	_, err = fx.svc.SavePayload(context.Background(), u1, "e1", []byte(`"nope"`))
	assert.ErrorIs(t, err, model.ErrInvalidDocument)
}

func TestEntrySavePayload_SharesLockWithRecordUploads(t *testing.T) {
	fx := newEntryFixture(t, false)
	records := NewRecordService(fx.entries, fx.files, fx.evidence, 2, fx.locks)

	var wg sync.WaitGroup
	for i, rec := range []string{"r1", "r2", "r3", "r4"} {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := records.Upload(context.Background(), u1, "e1", rec, "", []model.MemoryFile{memFile(rec + ".png")}, nil)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := fx.svc.SavePayload(context.Background(), u1, "e1", []byte(fmt.Sprintf(`{"rows":[%d]}`, i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var doc struct {
		FileMapping map[string][]string `json:"fileMapping"`
	}
	require.NoError(t, json.Unmarshal([]byte(fx.entries.payload("e1")), &doc))
	assert.Len(t, doc.FileMapping, 4)
	assert.Zero(t, fx.locks.Len())
}

func TestEntryUpdateStatus(t *testing.T) {
	fx := newEntryFixture(t, false)

	require.NoError(t, fx.svc.UpdateStatus(context.Background(), u1, "e1", model.EntryStatusSubmitted))
	assert.Equal(t, model.EntryStatusSubmitted, fx.entries.rows["e1"].Status)
	assert.ErrorIs(t, fx.svc.UpdateStatus(context.Background(), u1, "e1", "archived"), ErrInvalidStatus)
}

func TestEntryFiles_DropsGhosts(t *testing.T) {
	fx := newEntryFixture(t, false)

	kept, err := fx.evidence.Upload(context.Background(), model.UploadRequest{UserID: "u1", EntryID: "e1", File: memFile("a.png")})
	require.NoError(t, err)
	require.NoError(t, fx.files.Create(context.Background(), &model.File{ID: "ghost", UserID: "u1", EntryID: "e1", StoragePath: "u1/missing"}))

	files, err := fx.svc.Files(context.Background(), u1, "e1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, kept.ID, files[0].ID)
	assert.Equal(t, 1, fx.files.count())

	_, err = fx.svc.Files(context.Background(), u1, "nope")
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
}

func TestEntryClear(t *testing.T) {
	fx := newEntryFixture(t, false)

	for _, name := range []string{"a.png", "b.pdf"} {
		_, err := fx.evidence.Upload(context.Background(), model.UploadRequest{UserID: "u1", EntryID: "e1", File: memFile(name)})
		require.NoError(t, err)
	}
	require.NoError(t, fx.files.Create(context.Background(), &model.File{ID: "stray", UserID: "u1", EntryID: "gone", StoragePath: "x"}))

	res, err := fx.svc.Clear(context.Background(), u1, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedFiles)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Orphans.DeletedCount)

	assert.Zero(t, fx.files.count())
	assert.Zero(t, fx.store.count())
	_, err = fx.entries.ByID(context.Background(), "u1", "e1")
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
}

func TestEntryClear_CollectsFailures(t *testing.T) {
	fx := newEntryFixture(t, false)

	f, err := fx.evidence.Upload(context.Background(), model.UploadRequest{UserID: "u1", EntryID: "e1", File: memFile("a.png")})
	require.NoError(t, err)
	fx.files.deleteErr[f.ID] = errors.New("locked")

	res, err := fx.svc.Clear(context.Background(), u1, "e1")
	require.NoError(t, err)
	assert.Zero(t, res.DeletedFiles)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], f.ID+": ")
}

func TestEntryClear_ApprovedRefused(t *testing.T) {
	fx := newEntryFixture(t, false)
	fx.entries.rows["e1"].Status = model.EntryStatusApproved

	_, err := fx.svc.Clear(context.Background(), u1, "e1")
	assert.ErrorIs(t, err, ErrEntryLocked)
	_, err = fx.entries.ByID(context.Background(), "u1", "e1")
	assert.NoError(t, err)
}
