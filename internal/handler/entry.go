package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/service"
)

// maxPayloadBytes bounds an entry document body.
const maxPayloadBytes = 4 << 20

type EntryHandler struct {
	entryService *service.EntryService
}

func NewEntryHandler(entryService *service.EntryService) *EntryHandler {
	return &EntryHandler{entryService: entryService}
}

type createEntryRequest struct {
	PageKey    string          `json:"page_key"`
	PeriodYear int             `json:"period_year"`
	Payload    json.RawMessage `json:"payload"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Create returns the caller's entry for a page and year, creating a draft if needed.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)

	var req createEntryRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.entryService.Create(r.Context(), ctxkeys.Session(r.Context()), req.PageKey, req.PeriodYear, req.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entryService.Get(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// SavePayload replaces the entry document with the request body.
func (h *EntryHandler) SavePayload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.entryService.SavePayload(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = h.entryService.UpdateStatus(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntryHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.entryService.Files(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Clear deletes the entry together with all of its evidence.
func (h *EntryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	res, err := h.entryService.Clear(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
