package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/events"
	"invoice-backend/internal/fields"
	"invoice-backend/internal/ocr"
	"invoice-backend/internal/records"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/server"
	"invoice-backend/internal/shared/storage/db"
	"invoice-backend/internal/shared/storage/object"
	localstore "invoice-backend/internal/shared/storage/object/local"
	s3store "invoice-backend/internal/shared/storage/object/s3"
	"invoice-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Archive        object.Store
	Extractor      ocr.Extractor
	Engine         *fields.Engine
	RecordsRepo    records.Repo
	RecordsService *records.Service
	RecordsHandler *records.Handler
	EventsHandler  *events.Handler
}

// Build wires the application from cfg. Dev-like environments fall back to
// in-memory storage and local text extraction when infrastructure is missing.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.SetLevel(cfg.LogLevel)

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.RecordsRepo = &records.SQLRepo{DB: sqlDB}
	} else {
		app.RecordsRepo = records.NewMemoryRepo()
	}

	rules, err := buildRules(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = fields.NewEngine(rules)

	app.Extractor, err = buildExtractor(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Archive, err = buildArchive(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.RecordsService = &records.Service{
		Repo:      app.RecordsRepo,
		Extractor: app.Extractor,
		Engine:    app.Engine,
		Archive:   app.Archive,
	}
	app.RecordsHandler = records.NewHandler(app.RecordsService, cfg.MaxUploadBytes)
	app.EventsHandler = events.NewHandler(app.RecordsRepo, cfg.EventsPollInterval)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:  cfg,
		Records: app.RecordsHandler,
		Events:  app.EventsHandler,
		Health:  health.NewService(map[string]health.Pinger{"records": app.RecordsRepo}),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":         cfg.Env,
		"sql":         sqlDB != nil,
		"ocr_backend": backendName(app.Extractor),
		"archive":     cfg.ArchiveStore,
	})
	return app, nil
}

// Close releases the database and OCR client.
func (a *App) Close() error {
	var errs []error
	if a.Extractor != nil {
		errs = append(errs, a.Extractor.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, dialect, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.DBAutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildRules(cfg config.Config) (*fields.RuleSet, error) {
	if strings.TrimSpace(cfg.RulesFile) == "" {
		return fields.DefaultRules(), nil
	}
	rs, err := fields.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load extraction rules: %w", err)
	}
	return rs, nil
}

func buildExtractor(ctx context.Context, cfg config.Config) (ocr.Extractor, error) {
	ext, err := ocr.New(ctx, ocr.Config{
		Backend:         cfg.OCRBackend,
		ProjectID:       cfg.DocAIProjectID,
		Location:        cfg.DocAILocation,
		ProcessorID:     cfg.DocAIProcessorID,
		CredentialsFile: cfg.DocAICredentialsFile,
		Timeout:         cfg.OCRTimeout,
	})
	if err == nil {
		return ext, nil
	}
	if !cfg.IsDevLike() {
		return nil, fmt.Errorf("ocr backend: %w", err)
	}
	telemetry.Warn("bootstrap.ocr_fallback", map[string]any{
		"backend":  cfg.OCRBackend,
		"fallback": ocr.BackendPDFText,
		"err":      err,
	})
	return ocr.NewPDFText(), nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ArchiveStore {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("ARCHIVE_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	default:
		return nil, nil
	}
}

func backendName(ext ocr.Extractor) string {
	switch ext.(type) {
	case *ocr.DocumentAI:
		return ocr.BackendDocumentAI
	case *ocr.PDFText:
		return ocr.BackendPDFText
	default:
		return "custom"
	}
}
