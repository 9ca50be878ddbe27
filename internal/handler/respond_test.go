package handler

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/evidencekit/internal/ids"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/orphan"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/service"
	"github.com/templui/evidencekit/internal/validation"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{orphan.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("failed to get entry: %w", repository.ErrEntryNotFound), http.StatusNotFound},
		{repository.ErrFileNotFound, http.StatusNotFound},
		{service.ErrEntryLocked, http.StatusConflict},
		{fmt.Errorf("%w: maximum size is 10 MB", validation.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{validation.ErrUnsupportedType, http.StatusBadRequest},
		{model.ErrInvalidCategory, http.StatusBadRequest},
		{model.ErrInvalidDocument, http.StatusBadRequest},
		{service.ErrInMemoryFile, http.StatusBadRequest},
		{errors.Join(errBadRequest, errors.New("eof")), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestWriteError_HidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)

	writeError(rec, req, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeError(rec, req, service.ErrInvalidMonth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"month must be between 1 and 12"}`, rec.Body.String())
}

func TestOptionalMonth(t *testing.T) {
	m, err := optionalMonth("")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = optionalMonth("7")
	require.NoError(t, err)
	assert.Equal(t, 7, *m)

	_, err = optionalMonth("july")
	assert.ErrorIs(t, err, service.ErrInvalidMonth)
}

func TestOptionalBool(t *testing.T) {
	b, err := optionalBool("")
	require.NoError(t, err)
	assert.False(t, b)

	b, err = optionalBool("true")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = optionalBool("maybe")
	assert.ErrorIs(t, err, errBadRequest)
}

func TestMemoryFiles_AssignsIDs(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png"} {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("png"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	files, err := memoryFiles(req.MultipartForm.File["file"])
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.ID, ids.MemoryPrefix+"-"), f.ID)
		assert.True(t, ids.IsEphemeral(f.ID), f.ID)
		assert.Equal(t, []byte("png"), f.Data)
	}
	assert.NotEqual(t, files[0].ID, files[1].ID)
}

func TestGroupIDs(t *testing.T) {
	assert.Equal(t, []string{"r1", "r2", "r3"}, groupIDs([]string{"r1, r2", "", "r3,"}))
	assert.Nil(t, groupIDs(nil))
}
