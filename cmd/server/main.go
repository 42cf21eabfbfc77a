// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/mixplan/backend-go/internal/api"
	"github.com/andresuchdata/mixplan/backend-go/internal/cache"
	"github.com/andresuchdata/mixplan/backend-go/internal/config"
	"github.com/andresuchdata/mixplan/backend-go/internal/drive"
	"github.com/andresuchdata/mixplan/backend-go/internal/metrics"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository/memory"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/mixplan/backend-go/internal/service"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
	"github.com/andresuchdata/mixplan/backend-go/internal/storage"
	"github.com/andresuchdata/mixplan/backend-go/pkg/logger"
)

type repositories struct {
	scenarios repository.ScenarioRepository
	runs      repository.PlanRunRepository
	ingest    *repository.IngestRepository
	close     func()
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	level := cfg.App.LogLevel
	if level == "" {
		level = cfg.Server.Mode
	}
	logger.SetLevel(level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize repositories")
	}
	defer repos.close()

	planCache, err := cache.NewPlanCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Plan cache unavailable, continuing without it")
		planCache = cache.NewNoopPlanCache()
	}

	exports, err := storage.New(cfg.Storage, cfg.App.DataDir)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize export storage")
	}

	engine, err := solver.Open(ctx, solver.Config{Engine: cfg.Solver.Engine, RemoteURL: cfg.Solver.RemoteURL})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize solver engine")
	}
	adapter := solver.NewAdapter(engine)
	opts := solver.Options{
		TimeLimit: cfg.Solver.TimeLimit(),
		Presolve:  cfg.Solver.Presolve,
		Verbosity: cfg.Solver.Verbosity,
		MIPGap:    cfg.Solver.MIPGap,
	}

	services := &api.Services{
		Scenarios:     service.NewScenarioService(repos.scenarios, cfg.Planner.Days),
		Solver:        adapter,
		SolverOptions: opts,
	}

	var plannerOptions []planner.Option
	planConfig := service.PlanServiceConfig{
		Scenarios:     repos.scenarios,
		Runs:          repos.runs,
		Cache:         planCache,
		Storage:       exports,
		Days:          cfg.Planner.Days,
		UploadExports: true,
	}
	if cfg.Metrics.Enabled {
		m := metrics.New()
		services.Metrics = m
		planConfig.Observer = m
		plannerOptions = append(plannerOptions, planner.WithObserver(m))
	}
	planConfig.Planner = planner.New(adapter, opts, plannerOptions...)
	services.Plans = service.NewPlanService(planConfig)

	if driveHandler := setupDrive(ctx, cfg, repos); driveHandler != nil {
		services.Drive = driveHandler
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("engine", adapter.EngineName()).
			Str("repository", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == "memory" {
		store := memory.NewStore()
		logger.Log.Warn().Msg("Using in-memory repository, scenarios are lost on restart")
		return &repositories{scenarios: store, runs: store, close: func() {}}, nil
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &repositories{
		scenarios: postgres.NewScenarioRepository(db),
		runs:      postgres.NewPlanRunRepository(db),
		ingest:    repository.NewIngestRepository(db.DB.DB),
		close:     func() { db.Close() },
	}, nil
}

// setupDrive mounts the catalog import routes when Drive credentials are configured and the
// scenarios live in postgres.
func setupDrive(ctx context.Context, cfg *config.Config, repos *repositories) *drive.Handler {
	if cfg.Drive.CredentialsJSON == "" && cfg.Drive.CredentialsFile == "" {
		return nil
	}
	if repos.ingest == nil {
		logger.Log.Warn().Msg("Drive import needs the postgres repository, skipping")
		return nil
	}

	svc, err := drive.NewServiceFromConfig(ctx, cfg.Drive)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to initialize Drive service")
		return nil
	}
	return drive.NewHandler(svc, drive.NewImporter(svc, repos.ingest, cfg.Planner.Days))
}
