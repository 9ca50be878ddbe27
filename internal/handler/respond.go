package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/templui/evidencekit/internal/filemap"
	"github.com/templui/evidencekit/internal/ids"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/orphan"
	"github.com/templui/evidencekit/internal/reconcile"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/service"
	"github.com/templui/evidencekit/internal/validation"
)

// multipartMemory is the in-memory threshold for parsed multipart forms.
const multipartMemory = 32 << 20

var errBadRequest = errors.New("malformed request")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500 without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, orphan.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrEntryNotFound), errors.Is(err, repository.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEntryLocked):
		return http.StatusConflict
	case errors.Is(err, validation.ErrFileTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrUnsupportedType),
		errors.Is(err, validation.ErrInvalidPath),
		errors.Is(err, validation.ErrInvalidPageKey),
		errors.Is(err, validation.ErrInvalidYear),
		errors.Is(err, service.ErrMissingEntry),
		errors.Is(err, filemap.ErrMissingEntry),
		errors.Is(err, reconcile.ErrMissingEntry),
		errors.Is(err, service.ErrInMemoryFile),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrPageRequired),
		errors.Is(err, model.ErrInvalidCategory),
		errors.Is(err, model.ErrInvalidDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errors.Join(errBadRequest, err)
	}
	return nil
}

// memoryFiles reads uploaded parts into MemoryFiles. The declared part
// content type is kept; validation infers one when it is missing.
func memoryFiles(headers []*multipart.FileHeader) ([]model.MemoryFile, error) {
	files := make([]model.MemoryFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		data, err := io.ReadAll(f)
		closeErr := f.Close()
		if closeErr != nil {
			slog.Error("failed to close upload part", "error", closeErr, "filename", h.Filename)
		}
		if err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		files = append(files, model.MemoryFile{
			ID:       ids.NewMemoryFileID(),
			Filename: h.Filename,
			Size:     h.Size,
			MimeType: h.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return files, nil
}

// optionalBool parses a boolean query value; empty means false.
func optionalBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", errBadRequest, v)
	}
	return b, nil
}

// optionalMonth parses a 1-based month form value; empty means none.
func optionalMonth(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	m, err := strconv.Atoi(v)
	if err != nil {
		return nil, service.ErrInvalidMonth
	}
	return &m, nil
}
