package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/database"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/delivery/httpd"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/observability"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/queue"
)

// Mode selects which parts of the service New wires up.
type Mode int

const (
	// ModeRun performs a single batch analysis.
	ModeRun Mode = iota
	// ModeServe exposes the read-only HTTP API.
	ModeServe
	// ModeWorker runs analyses on request from the queue.
	ModeWorker
	// ModeExport reads the stored report only.
	ModeExport
)

func (m Mode) needsExamStore() bool {
	return m == ModeRun || m == ModeWorker
}

type App struct {
	config *config.Config
	logger zerolog.Logger
	mode   Mode

	resultDB *sql.DB
	examDB   *sql.DB
	redis    *redis.Client
	rabbitMQ repository.RabbitMQConnection

	runner  service.AnalysisRunner
	reports service.ReportService
	worker  worker.AnalysisWorker
	server  *http.Server
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, mode Mode) (app *App, err error) {
	a := &App{config: cfg, logger: log, mode: mode}
	defer func() {
		if err != nil {
			a.closeConnections()
		}
	}()

	a.resultDB, err = database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: result store: %w", service.ErrDataAccess, err)
	}
	reportRepo := repository.NewReportRepository(a.resultDB, log)

	var cache repository.ReportCache
	if cfg.Redis.Enabled {
		a.redis, err = repository.ConnectRedis(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("Report cache unavailable, continuing without it")
			a.redis = nil
			err = nil
		} else {
			cache = repository.NewRedisReportCache(a.redis, cfg.Redis.TTL, log)
		}
	}

	a.reports = service.NewReportService(reportRepo, cache, log)

	if mode.needsExamStore() {
		if err := a.wireRunner(ctx, reportRepo, cache); err != nil {
			return nil, err
		}
	}

	switch mode {
	case ModeServe:
		a.server = a.newServer(reportRepo)
	case ModeWorker:
		consumer := queue.NewRabbitMQConsumer(
			a.rabbitMQ.Channel(),
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.ConsumerTag,
			cfg.RabbitMQ.PrefetchCount,
			log,
		)
		a.worker = worker.NewAnalysisWorker(consumer, a.runner, log)
	}

	return a, nil
}

func (a *App) wireRunner(ctx context.Context, reportRepo repository.ReportRepository, cache repository.ReportCache) error {
	cfg := a.config
	log := a.logger

	var err error
	a.examDB, err = database.Open(ctx, cfg.ExamStore)
	if err != nil {
		return fmt.Errorf("%w: exam store: %w", service.ErrDataAccess, err)
	}

	traps, err := loadTraps(cfg.Analysis.TrapCatalogPath, log)
	if err != nil {
		return err
	}

	weights := analyzer.Weights{
		Jaccard:     cfg.Analysis.Weights.Jaccard,
		Levenshtein: cfg.Analysis.Weights.Levenshtein,
		Keyword:     cfg.Analysis.Weights.Keyword,
	}
	tiers := analyzer.TierBoundaries{
		Medium: cfg.Analysis.Tiers.Medium,
		High:   cfg.Analysis.Tiers.High,
	}
	levels := analyzer.AILevelBoundaries{
		Medium: cfg.Analysis.AILevels.Medium,
		High:   cfg.Analysis.AILevels.High,
	}

	scheduler := service.NewComparisonScheduler(
		analyzer.NewCompositeScorer(weights, tiers),
		service.SchedulerConfig{
			AcceptThreshold: cfg.Analysis.SimilarityAcceptThreshold,
			MaxComparisons:  cfg.Analysis.MaxComparisons,
			MinAnswerLength: cfg.Analysis.MinAnswerLength,
			Order:           service.BucketOrder(cfg.Analysis.BucketOrder),
			MaxWorkers:      cfg.Analysis.MaxWorkers,
		},
		log,
	)

	aiService := service.NewAIDetectionService(
		analyzer.NewAIDetector(traps, levels),
		service.AIDetectionConfig{
			Threshold:  cfg.Analysis.AIHeuristicThreshold,
			MaxWorkers: cfg.Analysis.MaxWorkers,
		},
		log,
	)

	deps := service.RunnerDependencies{
		Exams:     repository.NewExamRepository(a.examDB, log),
		Reports:   reportRepo,
		Scheduler: scheduler,
		AI:        aiService,
		Cache:     cache,
		Metrics:   observability.NewRunRecorder(),
	}

	if snapshots, err := a.snapshotStore(); err != nil {
		log.Warn().Err(err).Msg("Report snapshots disabled")
	} else if snapshots != nil {
		deps.Snapshots = snapshots
	}

	if a.mode == ModeWorker || cfg.RabbitMQ.PublishCompleted {
		a.rabbitMQ, err = repository.NewRabbitMQConnection(cfg.RabbitMQ.URL, log)
		if err != nil {
			return err
		}
		if err := a.rabbitMQ.SetupQueue(cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.RoutingKey); err != nil {
			return err
		}
		if cfg.RabbitMQ.PublishCompleted {
			deps.Events = queue.NewReportEventPublisher(
				queue.NewRabbitMQPublisher(a.rabbitMQ.Channel(), log),
				cfg.RabbitMQ.Exchange,
				cfg.RabbitMQ.CompletedRoutingKey,
				log,
			)
		}
	}

	runner := service.NewAnalysisRunner(deps, service.RunnerConfig{
		CompletedStatus:   cfg.Analysis.CompletedStatus,
		MaxExams:          cfg.Analysis.MaxExamsToProcess,
		MaxAnswersPerExam: cfg.Analysis.MaxAnswersPerExam,
		LoadRetry:         service.RetryPolicy{Count: cfg.ExamStore.RetryCount, Delay: cfg.ExamStore.RetryDelay},
		PersistRetry:      service.RetryPolicy{Count: cfg.Database.RetryCount, Delay: cfg.Database.RetryDelay},
		Report:            reportConfig(cfg, len(traps)),
	}, log)
	a.runner = newBoundedRunner(runner, cfg.Analysis.Timeout, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, log)

	return nil
}

// loadTraps reads the configured catalog, or returns the built-in traps when
// no path is set.
func loadTraps(path string, log zerolog.Logger) ([]analyzer.Trap, error) {
	if path == "" {
		return analyzer.DefaultTraps(), nil
	}

	traps, err := analyzer.LoadTrapCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	log.Info().Str("path", path).Int("traps", len(traps)).Msg("Trap catalog loaded")
	return traps, nil
}

func (a *App) snapshotStore() (repository.SnapshotStore, error) {
	cfg := a.config.Snapshot

	var stores repository.MultiSnapshotStore
	if cfg.Enabled {
		stores = append(stores, repository.NewFileSnapshotStore(cfg.Directory, a.logger))
	}
	if cfg.MinIO.Enabled {
		store, err := repository.NewMinIOSnapshotStore(
			cfg.MinIO.Endpoint,
			cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey,
			cfg.MinIO.Bucket,
			cfg.MinIO.Region,
			cfg.MinIO.UseSSL,
			a.logger,
		)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}

	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0], nil
	default:
		return stores, nil
	}
}

func reportConfig(cfg *config.Config, trapCount int) models.ReportConfig {
	analysis := cfg.Analysis
	return models.ReportConfig{
		SimilarityAcceptThreshold: analysis.SimilarityAcceptThreshold,
		AIHeuristicThreshold:      analysis.AIHeuristicThreshold,
		MaxExamsToProcess:         analysis.MaxExamsToProcess,
		MaxAnswersPerExam:         analysis.MaxAnswersPerExam,
		MaxComparisons:            analysis.MaxComparisons,
		MinAnswerLength:           analysis.MinAnswerLength,
		BucketOrder:               analysis.BucketOrder,
		JaccardWeight:             analysis.Weights.Jaccard,
		LevenshteinWeight:         analysis.Weights.Levenshtein,
		KeywordWeight:             analysis.Weights.Keyword,
		MediumTierBoundary:        analysis.Tiers.Medium,
		HighTierBoundary:          analysis.Tiers.High,
		AIMediumBoundary:          analysis.AILevels.Medium,
		AIHighBoundary:            analysis.AILevels.High,
		TrapCount:                 trapCount,
	}
}

func (a *App) newServer(store httpd.Pinger) *http.Server {
	cfg := a.config

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	httpd.NewHandler(a.reports, store, a.logger).RegisterRoutes(router)

	return &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// RunOnce performs one analysis within the configured timeout and pushes the
// run metrics when a Pushgateway is configured.
func (a *App) RunOnce(ctx context.Context) (*models.AnalysisReport, error) {
	if a.runner == nil {
		return nil, errors.New("analysis runner is not configured")
	}
	return a.runner.Run(ctx)
}

// Serve blocks until the HTTP server stops.
func (a *App) Serve() error {
	if a.server == nil {
		return errors.New("http server is not configured")
	}

	a.logger.Info().Msgf("Starting integrity service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunWorker consumes run requests until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	if a.worker == nil {
		return errors.New("analysis worker is not configured")
	}

	if err := a.worker.Start(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to start analysis worker")
		return err
	}

	<-ctx.Done()
	return nil
}

func (a *App) Reports() service.ReportService {
	return a.reports
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down integrity service...")

	var shutdownErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
			shutdownErr = err
		}
	}

	if a.worker != nil {
		if err := a.worker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop analysis worker")
		}
	}

	a.closeConnections()

	a.logger.Info().Msg("Integrity service stopped")
	return shutdownErr
}

func (a *App) closeConnections() {
	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
		a.rabbitMQ = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
		a.redis = nil
	}

	for _, db := range []*sql.DB{a.examDB, a.resultDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}
	a.examDB, a.resultDB = nil, nil
}
