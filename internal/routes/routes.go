package routes

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/templui/evidencekit/internal/app"
	"github.com/templui/evidencekit/internal/handler"
	"github.com/templui/evidencekit/internal/middleware"
)

// maxFilesPerRequest sizes the multipart body limit relative to the per-file limit.
const maxFilesPerRequest = 20

func SetupRoutes(app *app.App) http.Handler {
	maxBody := app.Cfg.UploadMaxSize * maxFilesPerRequest

	// Handlers
	health := handler.NewHealthHandler(app.DB)
	entry := handler.NewEntryHandler(app.EntryService)
	file := handler.NewFileHandler(app.EvidenceService, maxBody)
	record := handler.NewRecordHandler(app.RecordService, maxBody)
	overwrite := handler.NewOverwriteHandler(app.OverwriteService, maxBody)
	maintenance := handler.NewMaintenanceHandler(app.Reclaimer)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// ============================================================================
	// PROTECTED ROUTES (/api/*)
	// ============================================================================

	// Uploads are rate limited per client IP
	uploadLimiter := middleware.RateLimit(60, time.Minute)

	// Entries
	mux.HandleFunc("POST /api/entries", middleware.RequireAuth(entry.Create))
	mux.HandleFunc("GET /api/entries/{id}", middleware.RequireAuth(entry.Get))
	mux.HandleFunc("PUT /api/entries/{id}/payload", middleware.RequireAuth(entry.SavePayload))
	mux.HandleFunc("PUT /api/entries/{id}/status", middleware.RequireAuth(entry.UpdateStatus))
	mux.HandleFunc("DELETE /api/entries/{id}", middleware.RequireAuth(entry.Clear))

	// Evidence files
	mux.HandleFunc("GET /api/entries/{id}/files", middleware.RequireAuth(entry.Files))
	mux.HandleFunc("POST /api/entries/{id}/files", uploadLimiter(middleware.RequireAuth(file.Upload)))
	mux.HandleFunc("DELETE /api/files/{id}", middleware.RequireAuth(file.Delete))
	mux.HandleFunc("GET /api/files/{id}/url", middleware.RequireAuth(file.URL))

	// Record lists
	mux.HandleFunc("GET /api/entries/{id}/records/{recordID}/files", middleware.RequireAuth(record.Files))
	mux.HandleFunc("POST /api/entries/{id}/records/{recordID}/files", uploadLimiter(middleware.RequireAuth(record.Upload)))
	mux.HandleFunc("DELETE /api/entries/{id}/records/{recordID}", middleware.RequireAuth(record.Remove))

	// Slot overwrite
	mux.HandleFunc("POST /api/entries/{id}/overwrite", uploadLimiter(middleware.RequireAuth(overwrite.Overwrite)))

	// Maintenance
	mux.HandleFunc("POST /api/maintenance/orphans", middleware.RequireAuth(maintenance.ReclaimOrphans))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Config(app.Cfg),
		middleware.SecurityHeaders,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService),
		middleware.Metrics, // Must be last: reads r.Pattern set by the mux
	)

	return handler
}
