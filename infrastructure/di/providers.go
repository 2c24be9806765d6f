package di

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/google/wire"
	"go.uber.org/zap"

	"graphstore/application/commands/bus"
	commandhandlers "graphstore/application/commands/handlers"
	"graphstore/application/ports"
	querybus "graphstore/application/queries/bus"
	queryhandlers "graphstore/application/queries/handlers"
	"graphstore/application/services"
	domainconfig "graphstore/domain/config"
	"graphstore/infrastructure/config"
	"graphstore/infrastructure/messaging/eventbridge"
	"graphstore/infrastructure/persistence"
	"graphstore/interfaces/http/rest"
	"graphstore/pkg/observability"
)

// serviceName names the process in traces.
const serviceName = "graphstore"

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      ports.Store
	Service    *services.GraphService
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Collector  *observability.Collector
	Router     *rest.Router
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfigLoader,
	ProvideStore,
	ProvideDomainConfig,
	ProvideCollector,
	ProvideMetrics,
	ProvideEventPublisher,
	ProvideTracer,
	services.NewGraphService,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() || cfg.IsLambda {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("backend", cfg.StorageBackend)), nil
}

// ProvideAWSConfigLoader loads the shared AWS configuration on first use,
// so local backends never touch AWS credentials.
func ProvideAWSConfigLoader(cfg *config.Config) persistence.AWSConfigLoader {
	var (
		once   sync.Once
		awsCfg aws.Config
		err    error
	)
	return func(ctx context.Context) (aws.Config, error) {
		once.Do(func() {
			awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		})
		return awsCfg, err
	}
}

// ProvideStore opens the configured storage backend. The cleanup closes it.
func ProvideStore(ctx context.Context, cfg *config.Config, loadAWS persistence.AWSConfigLoader, logger *zap.Logger) (ports.Store, func(), error) {
	store, err := persistence.Open(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideDomainConfig applies the process configuration to the domain
// defaults of the environment.
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domain := domainconfig.LoadDomainConfig(cfg.Environment)
	if cfg.DefaultTake > 0 {
		domain.DefaultTake = cfg.DefaultTake
	}
	if cfg.MaxTake > 0 {
		domain.MaxTake = cfg.MaxTake
	}
	if cfg.EventTypeID != "" {
		domain.EventTypeID = cfg.EventTypeID
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return domain, nil
}

// ProvideCollector returns the Prometheus collector, or nil when another
// sink is configured.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if cfg.MetricsSink != config.MetricsPrometheus {
		return nil
	}
	return observability.NewCollector(sanitizeNamespace(cfg.MetricsNamespace))
}

// ProvideMetrics selects the sink fed by the facade and the buses.
func ProvideMetrics(
	ctx context.Context,
	cfg *config.Config,
	collector *observability.Collector,
	loadAWS persistence.AWSConfigLoader,
	logger *zap.Logger,
) (ports.Metrics, error) {
	switch cfg.MetricsSink {
	case config.MetricsPrometheus:
		return collector, nil
	case config.MetricsCloudWatch:
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for CloudWatch: %w", err)
		}
		namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
		return observability.NewCloudWatchMetrics(namespace, awscloudwatch.NewFromConfig(awsCfg), logger), nil
	default:
		return observability.NoopMetrics{}, nil
	}
}

// ProvideEventPublisher creates the change notification publisher.
func ProvideEventPublisher(
	ctx context.Context,
	cfg *config.Config,
	loadAWS persistence.AWSConfigLoader,
	logger *zap.Logger,
) (ports.EventPublisher, error) {
	if !cfg.EnableEvents {
		return eventbridge.NoopPublisher{}, nil
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for EventBridge: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger), nil
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(service *services.GraphService, metrics ports.Metrics, logger *zap.Logger) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)
	if err := commandhandlers.Register(commandBus, service); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	service *services.GraphService,
	domain *domainconfig.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.LoggingMiddleware(logger, slowQueryThreshold),
		querybus.MetricsMiddleware(metrics),
	)
	handler := queryhandlers.NewGraphQueryHandler(service, domain.LenientPolicy())
	if err := queryhandlers.Register(queryBus, handler); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideRouter creates the HTTP router.
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, queryBus, collector, cfg, logger)
}
