package handler

import (
	"net/http"

	"github.com/templui/evidencekit/internal/ctxkeys"
	"github.com/templui/evidencekit/internal/orphan"
)

type MaintenanceHandler struct {
	reclaimer *orphan.Reclaimer
}

func NewMaintenanceHandler(reclaimer *orphan.Reclaimer) *MaintenanceHandler {
	return &MaintenanceHandler{reclaimer: reclaimer}
}

// ReclaimOrphans removes the caller's files whose entry no longer exists.
func (h *MaintenanceHandler) ReclaimOrphans(w http.ResponseWriter, r *http.Request) {
	res, err := h.reclaimer.Run(r.Context(), ctxkeys.Session(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
