package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/service"
)

type FileHandler struct {
	evidenceService *service.EvidenceService
	maxBody         int64
}

// NewFileHandler creates the evidence file handler. maxBody caps a whole
// multipart request; per-file limits are enforced by the service.
func NewFileHandler(evidenceService *service.EvidenceService, maxBody int64) *FileHandler {
	return &FileHandler{evidenceService: evidenceService, maxBody: maxBody}
}

type uploadResponse struct {
	Files  []*model.File `json:"files"`
	Errors []string      `json:"errors"`
}

// Upload stores every "file" part under the entry. Form fields category,
// month and record_id apply to all parts.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	err := parseMultipart(w, r, h.maxBody)
	if err != nil {
		writeError(w, r, err)
		return
	}

	category, err := model.ParseCategory(r.FormValue("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := optionalMonth(r.FormValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := memoryFiles(r.MultipartForm.File["file"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no file uploaded"})
		return
	}

	session := ctxkeys.Session(r.Context())
	res := uploadResponse{Files: []*model.File{}, Errors: []string{}}
	var firstErr error
	for _, f := range files {
		uploaded, err := h.evidenceService.Upload(r.Context(), model.UploadRequest{
			UserID:   session.UserID,
			EntryID:  r.PathValue("id"),
			Category: category,
			Month:    month,
			RecordID: r.FormValue("record_id"),
			File:     f,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Warn("evidence upload failed", "memory_id", f.ID, "filename", f.Filename, "entry_id", r.PathValue("id"), "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): %s", f.Filename, f.ID, err))
			continue
		}
		res.Files = append(res.Files, uploaded)
	}

	if len(res.Files) == 0 {
		writeError(w, r, firstErr)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.evidenceService.Delete(r.Context(), ctxkeys.Session(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// URL returns a time-limited download link for a file.
func (h *FileHandler) URL(w http.ResponseWriter, r *http.Request) {
	url, err := h.evidenceService.URL(r.Context(), ctxkeys.Session(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
