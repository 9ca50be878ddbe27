package filemap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/evidencekit/internal/model"
)

type fakeUploader struct {
	mu       sync.Mutex
	requests []model.UploadRequest
	calls    atomic.Int32
	fail     map[string]error
}

func (f *fakeUploader) Upload(_ context.Context, req model.UploadRequest) (*model.File, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err, ok := f.fail[req.File.Filename]; ok {
		return nil, err
	}
	return &model.File{ID: "id-" + req.File.Filename, EntryID: req.EntryID}, nil
}

func memFiles(names ...string) []model.MemoryFile {
	files := make([]model.MemoryFile, 0, len(names))
	for _, n := range names {
		files = append(files, model.MemoryFile{ID: "memory-1-" + n, Filename: n, Size: 1, Data: []byte("x")})
	}
	return files
}

func strPtr(s string) *string { return &s }

func newMap(up Uploader) *Map {
	return New(Config{UserID: "u1", EntryID: "e1", PageKey: "energy", Category: model.CategoryOther, Concurrency: 3}, up, nil)
}

func TestUpload_EmptyIsNoop(t *testing.T) {
	up := &fakeUploader{}
	m := newMap(up)

	ids, err := m.Upload(context.Background(), "r1", nil)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
	assert.Zero(t, up.calls.Load())
	assert.Empty(t, m.Mapping())
}

func TestUpload_MissingEntry(t *testing.T) {
	up := &fakeUploader{}
	m := New(Config{UserID: "u1"}, up, nil)

	_, err := m.Upload(context.Background(), "r1", memFiles("a.png"))
	assert.ErrorIs(t, err, ErrMissingEntry)
	assert.Zero(t, up.calls.Load())

	ids, err := m.Upload(context.Background(), "r1", memFiles("a.png"), WithEntryID("e2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id-a.png"}, ids)
	assert.Equal(t, "e2", up.requests[0].EntryID)
}

func TestUpload_AppendsInInputOrder(t *testing.T) {
	up := &fakeUploader{}
	m := newMap(up)
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["old"]}}`))

	ids, err := m.Upload(context.Background(), "r1", memFiles("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id-a", "id-b", "id-c", "id-d"}, ids)
	assert.Equal(t, []string{"old", "id-a", "id-b", "id-c", "id-d"}, m.FileIDs("r1"))

	for _, req := range up.requests {
		assert.Equal(t, []string{"r1"}, req.RecordIDs)
		assert.Equal(t, "r1", req.RecordID)
		assert.Equal(t, "u1", req.UserID)
		assert.Equal(t, model.CategoryOther, req.Category)
	}
}

func TestUpload_WithRecordIDs(t *testing.T) {
	up := &fakeUploader{}
	m := newMap(up)

	_, err := m.Upload(context.Background(), "g1", memFiles("a"), WithRecordIDs("r1", "r2", "r3"))
	require.NoError(t, err)
	require.Len(t, up.requests, 1)
	assert.Equal(t, []string{"r1", "r2", "r3"}, up.requests[0].RecordIDs)
	assert.Equal(t, "g1", up.requests[0].RecordID)
	assert.Equal(t, []string{"id-a"}, m.FileIDs("g1"))
}

func TestUpload_PartialFailure(t *testing.T) {
	boom := errors.New("network down")
	up := &fakeUploader{fail: map[string]error{"b": boom}}
	m := newMap(up)

	ids, err := m.Upload(context.Background(), "r1", memFiles("a", "b", "c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b (memory-1-b): network down")
	assert.Equal(t, []string{"id-a", "id-c"}, ids)
	assert.Equal(t, []string{"id-a", "id-c"}, m.FileIDs("r1"))
}

func TestUpload_AllFailLeavesMappingUntouched(t *testing.T) {
	up := &fakeUploader{fail: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	m := newMap(up)
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["old"]}}`))

	ids, err := m.Upload(context.Background(), "r1", memFiles("a", "b"))
	require.Error(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, map[string][]string{"r1": {"old"}}, m.Mapping())
}

func TestUpload_CanceledContextStillCompletes(t *testing.T) {
	up := &fakeUploader{}
	m := newMap(up)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids, err := m.Upload(ctx, "r1", memFiles("a", "b"))
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestUpload_ConcurrentBatches(t *testing.T) {
	up := &fakeUploader{}
	m := newMap(up)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Upload(context.Background(), fmt.Sprintf("r%d", i%2), memFiles(fmt.Sprintf("f%d", i)))
		}()
	}
	wg.Wait()

	mapping := m.Mapping()
	assert.Len(t, mapping["r0"], 5)
	assert.Len(t, mapping["r1"], 5)
}

func TestResolve_TierPriority(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["f-map"]}}`))

	tagged := &model.File{ID: "f-tagged", RecordIDs: model.StringList{"r1", "r2"}}
	legacy := &model.File{ID: "f-legacy", RecordID: strPtr("r1")}
	mapped := &model.File{ID: "f-map"}

	got := m.Resolve("r1", []*model.File{tagged, legacy, mapped})
	assert.Equal(t, []*model.File{tagged}, got)

	got = m.Resolve("r1", []*model.File{legacy, mapped})
	assert.Equal(t, []*model.File{legacy}, got)

	got = m.Resolve("r1", []*model.File{mapped})
	assert.Equal(t, []*model.File{mapped}, got)
}

func TestResolve_LegacyIgnoredWhenRecordIDsPresent(t *testing.T) {
	m := newMap(&fakeUploader{})

	// record_ids is authoritative: this file belongs to r2 only
	moved := &model.File{ID: "f1", RecordIDs: model.StringList{"r2"}, RecordID: strPtr("r1")}
	old := &model.File{ID: "f2", LegacyRecordID: strPtr("r1")}

	got := m.Resolve("r1", []*model.File{moved, old})
	assert.Equal(t, []*model.File{old}, got)

	empty := &model.File{ID: "f3", RecordIDs: model.StringList{}, RecordID: strPtr("r9")}
	assert.Empty(t, m.Resolve("r9", []*model.File{empty}))
}

func TestResolve_NoMatch(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["missing"]}}`))

	got := m.Resolve("r1", []*model.File{{ID: "other"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadFromPayload_Malformed(t *testing.T) {
	cases := map[string]string{
		"nil":         "",
		"null":        "null",
		"not object":  `[1,2]`,
		"garbage":     `{{{`,
		"no mapping":  `{"x":1}`,
		"null map":    `{"fileMapping":null}`,
		"string map":  `{"fileMapping":"r1"}`,
		"array value": `{"fileMapping":[["a"]]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			m := newMap(&fakeUploader{})
			m.LoadFromPayload([]byte(`{"fileMapping":{"stale":["a"]}}`))

			assert.NotPanics(t, func() { m.LoadFromPayload([]byte(doc)) })
			assert.Empty(t, m.Mapping())
		})
	}
}

func TestLoadFromPayload_DropsBadEntries(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["a",2,null,"b"],"r2":"nope","r3":{"a":1},"r4":[]}}`))

	assert.Equal(t, map[string][]string{"r1": {"a", "b"}, "r4": {}}, m.Mapping())
}

func TestRemoveRecord_NonInterference(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["a"],"r2":["b","c"]}}`))

	m.RemoveRecord("r1")
	m.RemoveRecord("absent")

	assert.Equal(t, map[string][]string{"r2": {"b", "c"}}, m.Mapping())
}

func TestToPayload_PreservesFields(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["a"]}}`))
	_, err := m.Upload(context.Background(), "r2", memFiles("x"))
	require.NoError(t, err)

	out, err := m.ToPayload([]byte(`{"rows":[{"id":"r1"}],"fileMapping":{"stale":["z"]},"note":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"id":"r1"}],"note":"hi","fileMapping":{"r1":["a"],"r2":["id-x"]}}`, string(out))

	out, err = m.ToPayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileMapping":{"r1":["a"],"r2":["id-x"]}}`, string(out))

	_, err = m.ToPayload([]byte(`[1]`))
	assert.Error(t, err)
}

func TestMapping_IsDeepCopy(t *testing.T) {
	m := newMap(&fakeUploader{})
	m.LoadFromPayload([]byte(`{"fileMapping":{"r1":["a"]}}`))

	snap := m.Mapping()
	snap["r1"][0] = "mutated"
	snap["r2"] = []string{"b"}

	assert.Equal(t, map[string][]string{"r1": {"a"}}, m.Mapping())
}
