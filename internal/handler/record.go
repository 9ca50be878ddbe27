package handler

import (
	"net/http"
	"strings"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/service"
)

type RecordHandler struct {
	recordService *service.RecordService
	maxBody       int64
}

func NewRecordHandler(recordService *service.RecordService, maxBody int64) *RecordHandler {
	return &RecordHandler{recordService: recordService, maxBody: maxBody}
}

func (h *RecordHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.recordService.Files(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"), r.PathValue("recordID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Upload attaches "file" parts to a record. record_ids (repeated or comma
// separated) tags the files with a whole group of records.
func (h *RecordHandler) Upload(w http.ResponseWriter, r *http.Request) {
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
	files, err := memoryFiles(r.MultipartForm.File["file"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.recordService.Upload(r.Context(), ctxkeys.Session(r.Context()),
		r.PathValue("id"), r.PathValue("recordID"), category, files, groupIDs(r.MultipartForm.Value["record_ids"]))
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if len(res.FileIDs) == 0 {
		status = http.StatusOK
		if res.Failed != "" {
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, res)
}

// Remove drops a record from the file mapping. ?delete_files=true also deletes
// the files no other record references.
func (h *RecordHandler) Remove(w http.ResponseWriter, r *http.Request) {
	deleteFiles, err := optionalBool(r.URL.Query().Get("delete_files"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.recordService.Remove(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"), r.PathValue("recordID"), deleteFiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func groupIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
