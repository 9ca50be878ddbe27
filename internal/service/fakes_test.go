package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/repository"
)

type memFileRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.File
	createErr error
	deleteErr map[string]error
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{rows: map[string]*model.File{}, deleteErr: map[string]error{}}
}

func (r *memFileRepo) Create(_ context.Context, f *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *f
	r.rows[f.ID] = &cp
	return nil
}

func (r *memFileRepo) ByID(_ context.Context, userID, id string) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok || f.UserID != userID {
		return nil, repository.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) Files(_ context.Context, userID, entryID string) ([]*model.File, error) {
	return r.list(func(f *model.File) bool { return f.UserID == userID && f.EntryID == entryID }), nil
}

func (r *memFileRepo) AllUserFiles(_ context.Context, userID string) ([]*model.File, error) {
	return r.list(func(f *model.File) bool { return f.UserID == userID }), nil
}

func (r *memFileRepo) list(keep func(*model.File) bool) []*model.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.File
	for _, f := range r.rows {
		if keep(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *memFileRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteErr[id]; err != nil {
		return err
	}
	f, ok := r.rows[id]
	if !ok || f.UserID != userID {
		return repository.ErrFileNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memFileRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memEntryRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Entry
}

func newMemEntryRepo(entries ...*model.Entry) *memEntryRepo {
	r := &memEntryRepo{rows: map[string]*model.Entry{}}
	for _, e := range entries {
		r.rows[e.ID] = e
	}
	return r
}

func (r *memEntryRepo) Create(_ context.Context, e *model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *memEntryRepo) ByID(_ context.Context, userID, id string) (*model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.UserID != userID {
		return nil, repository.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEntryRepo) ByPage(_ context.Context, userID, pageKey string, year int) (*model.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.UserID == userID && e.PageKey == pageKey && e.PeriodYear == year {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (r *memEntryRepo) Exists(_ context.Context, userID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	return ok && e.UserID == userID, nil
}

func (r *memEntryRepo) UpdatePayload(_ context.Context, userID, id string, payload model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.UserID != userID {
		return repository.ErrEntryNotFound
	}
	e.Payload = payload
	return nil
}

func (r *memEntryRepo) UpdateStatus(_ context.Context, userID, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.UserID != userID {
		return repository.ErrEntryNotFound
	}
	e.Status = status
	return nil
}

func (r *memEntryRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.UserID != userID {
		return repository.ErrEntryNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memEntryRepo) payload(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.rows[id].Payload)
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string]string
	types     map[string]string
	putErr    map[string]error
	deleteErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string]string{}, types: map[string]string{}, putErr: map[string]error{}}
}

func (s *memStorage) Put(_ context.Context, path string, content io.Reader, contentType string) (string, error) {
	for name, err := range s.putErr {
		if strings.HasSuffix(path, name) {
			return "", err
		}
	}
	b, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = string(b)
	s.types[path] = contentType
	return path, nil
}

func (s *memStorage) Delete(_ context.Context, paths ...string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

func (s *memStorage) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	return "https://signed.example/" + path + "?ttl=" + ttl.String(), nil
}

func (s *memStorage) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func newEntry(id, userID string) *model.Entry {
	return &model.Entry{
		ID:         id,
		UserID:     userID,
		PageKey:    "energy",
		PeriodYear: 2024,
		Status:     model.EntryStatusDraft,
		Payload:    model.Document(`{}`),
	}
}

func memFile(name string) model.MemoryFile {
	return model.MemoryFile{ID: "memory-1700000000000-abc12", Filename: name, Data: []byte("content-" + name)}
}
