package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/evidencekit/internal/config"
	"github.com/templui/evidencekit/internal/db"
	"github.com/templui/evidencekit/internal/logger"
	"github.com/templui/evidencekit/internal/orphan"
	"github.com/templui/evidencekit/internal/reconcile"
	"github.com/templui/evidencekit/internal/repository"
	"github.com/templui/evidencekit/internal/service"
	"github.com/templui/evidencekit/internal/storage"
)

type App struct {
	Cfg              *config.Config
	DB               *sqlx.DB
	Storage          storage.Storage
	AuthService      *service.AuthService
	EvidenceService  *service.EvidenceService
	EntryService     *service.EntryService
	RecordService    *service.RecordService
	OverwriteService *service.OverwriteService
	Reclaimer        *orphan.Reclaimer
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	fileRepository := repository.NewFileRepository(database)
	entryRepository := repository.NewEntryRepository(database)

	// Storage
	fileStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Engine
	reclaimer := orphan.NewReclaimer(fileRepository, entryRepository, fileStorage, logger.Component("orphan"))
	ghosts := orphan.NewGhostCleaner(fileRepository, fileStorage, cfg.GhostRetryDelay, logger.Component("ghost"))

	// Services
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry, cfg.IsProduction())
	evidenceService := service.NewEvidenceService(fileRepository, entryRepository, fileStorage, cfg.UploadMaxSize, cfg.SignedURLTTL)
	reconciler := reconcile.New(evidenceService, cfg.UploadConcurrency, logger.Component("reconcile"))
	entryLocks := service.NewEntryLocks()
	entryService := service.NewEntryService(entryRepository, fileRepository, evidenceService, reclaimer, ghosts, entryLocks, cfg.OrphanSweepOnLoad)
	recordService := service.NewRecordService(entryRepository, fileRepository, evidenceService, cfg.UploadConcurrency, entryLocks)
	overwriteService := service.NewOverwriteService(entryRepository, fileRepository, reconciler, cfg.ReconcileDebug)

	return &App{
		Cfg:              cfg,
		DB:               database,
		Storage:          fileStorage,
		AuthService:      authService,
		EvidenceService:  evidenceService,
		EntryService:     entryService,
		RecordService:    recordService,
		OverwriteService: overwriteService,
		Reclaimer:        reclaimer,
	}, nil
}

// Close waits for background orphan sweeps, then closes the database.
func (a *App) Close() error {
	if a.EntryService != nil {
		a.EntryService.WaitSweeps()
	}
	return db.Close(a.DB)
}
