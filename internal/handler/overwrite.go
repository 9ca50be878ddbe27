package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/model"
	"github.com/templui/evidencekit/internal/reconcile"
	"github.com/templui/evidencekit/internal/service"
)

const (
	slotFilePrefix     = "slot."
	slotCategoryPrefix = "category."
)

type OverwriteHandler struct {
	overwriteService *service.OverwriteService
	maxBody          int64
}

func NewOverwriteHandler(overwriteService *service.OverwriteService, maxBody int64) *OverwriteHandler {
	return &OverwriteHandler{overwriteService: overwriteService, maxBody: maxBody}
}

// Overwrite reconciles an entry's slots against a multipart form:
//
//	slot=<key>             declares a slot (repeatable); its files are kept
//	slot.<key>=<file>      new files for a slot; they replace the slot's files
//	category.<key>=<cat>   optional explicit category for a slot
//
// Numeric keys are months, anything else is a named slot.
func (h *OverwriteHandler) Overwrite(w http.ResponseWriter, r *http.Request) {
	err := parseMultipart(w, r, h.maxBody)
	if err != nil {
		writeError(w, r, err)
		return
	}

	inputs, err := slotInputs(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.overwriteService.Run(r.Context(), ctxkeys.Session(r.Context()), r.PathValue("id"), inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func slotInputs(r *http.Request) ([]service.SlotInput, error) {
	form := r.MultipartForm

	var keys []string
	seen := map[string]bool{}
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range form.Value["slot"] {
		add(k)
	}
	var fileKeys []string
	for field := range form.File {
		if k, ok := strings.CutPrefix(field, slotFilePrefix); ok {
			fileKeys = append(fileKeys, k)
		}
	}
	slices.Sort(fileKeys)
	for _, k := range fileKeys {
		add(k)
	}

	inputs := make([]service.SlotInput, 0, len(keys))
	for _, k := range keys {
		in := service.SlotInput{Key: reconcile.ParseSlotKey(k)}
		if raw := r.FormValue(slotCategoryPrefix + k); raw != "" {
			category, err := model.ParseCategory(raw)
			if err != nil {
				return nil, err
			}
			in.Category = category
		}
		files, err := memoryFiles(form.File[slotFilePrefix+k])
		if err != nil {
			return nil, err
		}
		in.New = files
		inputs = append(inputs, in)
	}
	return inputs, nil
}
