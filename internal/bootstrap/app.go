package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"plantdoc/internal/analyses"
	"plantdoc/internal/diagnosis"
	"plantdoc/internal/diagnosis/kindwise"
	"plantdoc/internal/history"
	"plantdoc/internal/identify"
	"plantdoc/internal/identify/plantnet"
	"plantdoc/internal/services/health"
	"plantdoc/internal/shared/config"
	"plantdoc/internal/shared/server"
	"plantdoc/internal/shared/server/middleware"
	"plantdoc/internal/shared/storage/db"
	"plantdoc/internal/shared/storage/object"
	localstore "plantdoc/internal/shared/storage/object/local"
	s3store "plantdoc/internal/shared/storage/object/s3"
	"plantdoc/internal/shared/telemetry"
	"plantdoc/internal/treatments"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	Store       object.ObjectStore
	HistoryRepo history.Repo
	Treatments  *treatments.Table

	AnalysisService *analyses.Service
	HistoryService  *history.Service
	Health          *health.Service

	AnalysisHandler  *analyses.Handler
	HistoryHandler   *history.Handler
	TreatmentHandler *treatments.Handler
}

// Build prepares shared dependencies and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo, sqlDB, backend, err := buildHistoryRepo(ctx, cfg)
	if err != nil {
		return nil, err
	}

	identifier, identifyName, err := buildIdentifier(cfg)
	if err != nil {
		return nil, err
	}
	diagnoser, diagnosisName, err := buildDiagnoser(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       store,
		HistoryRepo: repo,
		Treatments:  treatments.Default(),
	}

	app.AnalysisService = &analyses.Service{
		Images:        store,
		Identifier:    identifier,
		Diagnoser:     diagnoser,
		Treatments:    app.Treatments,
		FallbackDelay: fallbackDelay(cfg.FallbackDelay),
	}
	app.HistoryService = history.NewService(repo)

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Health = health.NewService(identifyName, diagnosisName, backend, pinger)

	app.AnalysisHandler = analyses.NewHandler(app.AnalysisService, store, app.HistoryService)
	app.HistoryHandler = history.NewHandler(app.HistoryService)
	app.TreatmentHandler = treatments.NewHandler(app.Treatments)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		AnalysisHandler:  app.AnalysisHandler,
		HistoryHandler:   app.HistoryHandler,
		TreatmentHandler: app.TreatmentHandler,
		Health:           app.Health,
		RateLimiter:      middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":            cfg.Env,
		"object_store":   cfg.ObjectStoreType,
		"history":        backend,
		"identification": identifyName,
		"diagnosis":      diagnosisName,
	})
	return app, nil
}

// Close releases the database handle, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildHistoryRepo selects the history backend. In dev-like environments a
// database that cannot be reached falls back to the in-memory repo.
func buildHistoryRepo(ctx context.Context, cfg config.Config) (history.Repo, *sql.DB, string, error) {
	switch cfg.HistoryBackend {
	case "memory":
		return history.NewMemoryRepo(), nil, "memory", nil
	case "file":
		repo, err := history.NewFileRepo(cfg.HistoryDir)
		if err != nil {
			return nil, nil, "", err
		}
		return repo, nil, "file", nil
	}

	dialect, dsn := db.DialectSQLite, cfg.SQLitePath
	if cfg.HistoryBackend == "postgres" {
		dialect, dsn = db.DialectPostgres, cfg.DatabaseURL
	}
	sqlDB, err := OpenDatabase(ctx, dialect, dsn, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB, dialect)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.history.fallback_memory", map[string]any{
				"backend": string(dialect),
				"error":   err,
			})
			return history.NewMemoryRepo(), nil, "memory", nil
		}
		return nil, nil, "", err
	}
	return &history.SQLRepo{DB: sqlDB, Dialect: dialect}, sqlDB, string(dialect), nil
}

// OpenDatabase connects to the history database, creating the parent
// directory of a SQLite file first.
func OpenDatabase(ctx context.Context, dialect db.Dialect, dsn string, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		if dialect == db.DialectPostgres {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres history backend")
		}
		return nil, fmt.Errorf("SQLITE_PATH is required for the sqlite history backend")
	}
	if dialect == db.DialectSQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	return db.Connect(ctx, dialect, dsn, opts)
}

func buildIdentifier(cfg config.Config) (identify.Client, string, error) {
	if strings.TrimSpace(cfg.PlantNetAPIKey) == "" {
		telemetry.Warn("bootstrap.identify.unconfigured", map[string]any{
			"hint": "set PLANTNET_API_KEY; analyses will use the demo fallback",
		})
		return identify.PlaceholderClient{}, "unconfigured", nil
	}
	client, err := plantnet.NewClient(cfg.PlantNetAPIKey,
		plantnet.WithBaseURL(cfg.PlantNetURL),
		plantnet.WithProject(cfg.PlantNetProject),
		plantnet.WithLang(cfg.PlantNetLang),
	)
	if err != nil {
		return nil, "", err
	}
	return client, "plantnet", nil
}

// buildDiagnoser returns nil when no usable Kindwise key is configured so the
// analysis service runs its simulator.
func buildDiagnoser(cfg config.Config) (diagnosis.Client, string, error) {
	if !diagnosis.CanUseRealAPI(cfg.KindwiseAPIKey) {
		return nil, "simulator", nil
	}
	client, err := kindwise.NewClient(cfg.KindwiseAPIKey,
		kindwise.WithURL(cfg.KindwiseURL),
		kindwise.WithLanguage(cfg.KindwiseLanguage),
	)
	if err != nil {
		return nil, "", err
	}
	return client, "kindwise", nil
}

// fallbackDelay maps the configured delay onto analyses.Service, where zero
// means the default and a negative value disables the wait.
func fallbackDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
