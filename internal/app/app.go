// Package app wires configuration into a running interview service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cvone/interview/internal/config"
	"cvone/interview/internal/difficulty"
	"cvone/interview/internal/evaluation"
	"cvone/interview/internal/events"
	"cvone/interview/internal/handlers"
	"cvone/interview/internal/interview"
	"cvone/interview/internal/jobs"
	"cvone/interview/internal/language"
	"cvone/interview/internal/llm"
	_ "cvone/interview/internal/llm/gemini"
	"cvone/interview/internal/metrics"
	"cvone/interview/internal/observability"
	"cvone/interview/internal/pool"
	"cvone/interview/internal/prompts"
	"cvone/interview/internal/questions"
	"cvone/interview/internal/repositories"
	"cvone/interview/internal/repositories/memory"
	"cvone/interview/internal/repositories/mongo"
	"cvone/interview/internal/repositories/postgres"
	"cvone/interview/internal/routers"
)

const requestTimeout = 60 * time.Second

// Options override pieces New would otherwise build from config
type Options struct {
	Version  string
	Provider llm.Provider
	Store    repositories.Store
	Redis    *redis.Client
}

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    repositories.Store
	Provider llm.Provider
	Prompts  *prompts.PromptManager
	Service  *interview.Service

	version         string
	redis           *redis.Client
	reaper          *jobs.SessionReaper
	shutdownTracing func(context.Context) error
}

// New builds every component from cfg. Close must be called on success.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, version: opts.Version}
	if a.version == "" {
		a.version = "dev"
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "interview",
		Version:     a.version,
		Exporter:    cfg.OTelExporter,
		Endpoint:    cfg.OTelEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.shutdownTracing = shutdown

	a.Prompts, err = prompts.NewPromptManager()
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.NewProvider(cfg.Provider, llm.Options{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: logger,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
		}
	}
	a.Provider = metrics.InstrumentProvider(provider)

	a.Store = opts.Store
	if a.Store == nil {
		a.Store, err = OpenStore(ctx, cfg)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	publisher := events.Publisher(events.NopPublisher{})
	a.redis = opts.Redis
	if a.redis == nil && cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	if a.redis != nil {
		publisher = events.NewRedisPublisher(a.redis, cfg.EventsChannel, logger)
	}

	policy := llm.RetryPolicy{
		MaxAttempts: cfg.AIMaxRetries,
		BaseDelay:   cfg.AIRetryBaseDelay,
		MaxDelay:    cfg.AIRetryMaxDelay,
		Timeout:     cfg.AICallTimeout,
	}
	classifier := difficulty.NewClassifier(a.Provider, a.Prompts, cfg.AICallTimeout, logger)
	generator := questions.NewGenerator(a.Provider, a.Prompts, policy, logger)

	a.Service = interview.NewService(interview.Deps{
		Sessions:         a.Store.Sessions(),
		Pool:             pool.NewCache(a.Store.Pools(), classifier, generator, logger),
		Detector:         language.NewDetector(a.Provider, a.Prompts, cfg.AICallTimeout, logger),
		Evaluator:        evaluation.NewEvaluator(a.Provider, a.Prompts, policy, logger),
		Aggregator:       evaluation.NewAggregator(a.Provider, a.Prompts, cfg.AICallTimeout, logger),
		Events:           publisher,
		MaxQuestionCount: cfg.MaxQuestionCount,
		Logger:           logger,
	})

	a.reaper = jobs.NewSessionReaper(a.Service, jobs.ReaperConfig{
		Schedule: cfg.ReaperSchedule,
		IdleTTL:  cfg.SessionIdleTTL,
	}, logger)

	return a, nil
}

// OpenStore connects the store selected by cfg.StoreDriver
func OpenStore(ctx context.Context, cfg *config.Config) (repositories.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		return postgres.Open(cfg.PostgresDSN)
	case config.StoreMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}

// Router builds the HTTP handler with the full middleware stack
func (a *App) Router() *chi.Mux {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Logger,
		chimiddleware.Recoverer,
		chimiddleware.Timeout(requestTimeout),
		observability.Middleware,
		metrics.Middleware,
	)

	interviewHandler := handlers.NewInterviewHandler(a.Service, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Store, a.Provider, a.Prompts, a.version)

	routers.HealthRoutes(router, healthHandler)
	routers.InterviewRoutes(router, interviewHandler, a.Config.JWTSecret)
	routers.AdminRoutes(router, interviewHandler, a.Config.JWTSecret)
	return router
}

// Server returns an http.Server for the configured port
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      a.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartJobs schedules background jobs
func (a *App) StartJobs() error {
	return a.reaper.Start()
}

// Close stops jobs and releases every connection, returning the joined errors
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.reaper != nil {
		a.reaper.Stop(ctx)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
