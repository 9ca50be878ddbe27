package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/evidencekit/internal/ctxkeys"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status string `json:"status"`
	App    string `json:"app,omitempty"`
	Env    string `json:"env,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	res := healthResponse{Status: "ok"}
	if cfg := ctxkeys.Config(r.Context()); cfg != nil {
		res.App = cfg.AppName
		res.Env = cfg.AppEnv
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	err := h.db.PingContext(ctx)
	if err != nil {
		slog.Error("health check failed", "error", err)
		res.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
