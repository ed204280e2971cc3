package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/certmint/certmint-api/config"
	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/data"
	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/observability/statsd"
	"github.com/certmint/certmint-api/internal/service"
	"github.com/certmint/certmint-api/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Issuer        *service.IssuerService
	Tasks         *service.TaskService
	Events        *data.EventRepo
	Recipients    *data.RecipientRepo
	Certificates  *data.CertificateRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	CacheClient redis.UniversalClient
	Ledger      *LedgerAdapters
	Generator   core.ArtifactGenerator
	Store       core.ContentStore
	Logger      *slog.Logger
	// Background selects the gentler submission pacing used by the task
	// runner; interactive runs keep the tighter pace.
	Background bool
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB              *sql.DB
	EventRepo       *data.EventRepo
	RecipientRepo   *data.RecipientRepo
	CertificateRepo *data.CertificateRepo
	CacheRepo       *data.RedisCacheRepo
	Notifications   *data.RedisNotificationQueue
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "certmint",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := BuildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(deps ServiceDeps) *serviceRepositories {
	return &serviceRepositories{
		DB:              deps.DB,
		EventRepo:       data.NewEventRepo(deps.DB),
		RecipientRepo:   data.NewRecipientRepo(deps.DB),
		CertificateRepo: data.NewCertificateRepo(deps.DB),
		CacheRepo:       data.NewRedisCacheRepo(deps.CacheClient),
		Notifications: data.NewRedisNotificationQueue(data.RedisNotificationQueueOptions{
			Client: deps.RedisClient,
			Logger: deps.Logger,
		}),
	}
}

// BuildServices wires repositories, the issuance pipeline, and the services
// on top of them.
func BuildServices(deps ServiceDeps) *ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	repos := buildRepositories(deps)
	observability := buildObservability(logger, cfg.Observability)

	pace := cfg.Issuer.SubmitPace
	if deps.Background {
		pace = cfg.Issuer.SubmitPaceBackground
	}
	gate := issuance.NewConcurrencyGate(cfg.Issuer.Concurrency, rate.Every(pace))

	pipeline := issuance.NewPipeline(issuance.PipelineOptions{
		Generator:    deps.Generator,
		Store:        deps.Store,
		Submitter:    deps.Ledger.Submitter,
		Certificates: repos.CertificateRepo,
		Nonces:       deps.Ledger.Nonces,
		Gate:         gate,
		Config: issuance.PipelineConfig{
			Retry: issuance.RetryPolicy{
				BaseDelay:   cfg.Issuer.RetryBaseDelay,
				MaxAttempts: cfg.Issuer.RetryMaxAttempts,
			},
			PlaceholderBase: cfg.Issuer.PlaceholderBase,
		},
		Logger: logger,
	})

	orchestrator := issuance.NewBatchOrchestrator(issuance.OrchestratorOptions{
		Recipients:    repos.RecipientRepo,
		Pipeline:      pipeline,
		Gate:          gate,
		Notifications: repos.Notifications,
		Config: issuance.OrchestratorConfig{
			IssuerOrigin: deps.Ledger.Submitter.From().Hex(),
		},
		Logger: logger,
	})

	// A disabled metrics client must stay a nil interface, not a typed nil.
	var metricsSink statsd.Sink
	if observability.MetricsSink != nil {
		metricsSink = observability.MetricsSink
	}

	issuer := service.NewIssuerService(service.IssuerServiceOptions{
		Events:       repos.EventRepo,
		Orchestrator: orchestrator,
		Cache:        repos.CacheRepo,
		Metrics:      metricsSink,
		Alerts:       observability.FailureNotifier,
		LockTTL:      cfg.Issuer.BatchLockTTL,
		Logger:       logger,
	})

	tasks := service.NewTaskService(service.TaskServiceOptions{
		Issuer:         issuer,
		ProgressBuffer: cfg.Issuer.ProgressBuffer,
		Logger:         logger,
	})

	return &ServiceContainer{
		Issuer:        issuer,
		Tasks:         tasks,
		Events:        repos.EventRepo,
		Recipients:    repos.RecipientRepo,
		Certificates:  repos.CertificateRepo,
		Observability: observability,
	}
}
