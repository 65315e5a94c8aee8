package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/techbantu/GharSe-sub003/internal/handlers"
	"github.com/techbantu/GharSe-sub003/internal/platform/auth"
	"github.com/techbantu/GharSe-sub003/internal/platform/config"
	"github.com/techbantu/GharSe-sub003/internal/platform/observability"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
	"github.com/techbantu/GharSe-sub003/internal/repositories/redisstore"
	"github.com/techbantu/GharSe-sub003/internal/services"
)

const rateLimitKeyPrefix = "ratelimit:assistant"

// Container wires repositories, services and HTTP infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Assistant    *services.AssistantActionService
	RateLimiter  handlers.RateLimiter

	logger *zap.Logger
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger        *zap.Logger
	redis         redis.Scripter
	publisher     services.TurnEventPublisher
	meterProvider metric.MeterProvider
	clock         func() time.Time
}

// WithLogger sets the base logger used for service events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithRedis enables the shared token-bucket rate limiter.
func WithRedis(client redis.Scripter) Option {
	return func(o *containerOptions) { o.redis = client }
}

// WithTurnPublisher publishes a summary event for every resolved turn.
func WithTurnPublisher(publisher services.TurnEventPublisher) Option {
	return func(o *containerOptions) { o.publisher = publisher }
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *containerOptions) { o.meterProvider = provider }
}

// WithClock injects a clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) { o.clock = clock }
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	options := containerOptions{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	metrics, err := observability.NewAssistantMetrics(options.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("build assistant metrics: %w", err)
	}

	deps := services.AssistantActionServiceDeps{
		Catalog:         reg.Catalog(),
		Metrics:         metrics,
		FuzzyThreshold:  cfg.Assistant.FuzzyThreshold,
		PopularLimit:    cfg.Assistant.PopularLimit,
		MinMentionLen:   cfg.Assistant.MinMentionLength,
		RenderMarkdown:  cfg.Assistant.MarkdownMessages,
		MaxMessageBytes: cfg.Assistant.MaxMessageBytes,
		Clock:           options.clock,
		Logger:          observability.EventLogger(options.logger.Named("assistant")),
	}
	if carts := reg.Carts(); carts != nil {
		deps.Carts = carts
	}
	if options.publisher != nil && cfg.Features.TurnEvents {
		deps.Publisher = options.publisher
	}
	assistant, err := services.NewAssistantActionService(deps)
	if err != nil {
		return nil, fmt.Errorf("build assistant action service: %w", err)
	}

	limiter, err := buildRateLimiter(cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Assistant:    assistant,
		RateLimiter:  limiter,
		logger:       options.logger,
	}, nil
}

func buildRateLimiter(cfg config.Config, options containerOptions) (handlers.RateLimiter, error) {
	var local handlers.RateLimiter
	if memory := handlers.NewMemoryRateLimiter(cfg.RateLimits.AssistantPerMinute, options.clock); memory != nil {
		local = memory
	}
	if options.redis == nil {
		return local, nil
	}
	shared, err := redisstore.NewTokenBucketLimiter(options.redis, rateLimitKeyPrefix, cfg.RateLimits.AssistantPerMinute)
	if err != nil {
		return nil, fmt.Errorf("build redis rate limiter: %w", err)
	}
	logger := options.logger.Named("ratelimit")
	return handlers.NewFallbackRateLimiter(shared, local, func(ctx context.Context, err error) {
		logger.Warn("shared rate limiter unavailable; using local buckets", zap.Error(err))
	}), nil
}

// RouterOptions carries HTTP-only collaborators that are built outside the container.
type RouterOptions struct {
	Authenticator *auth.Authenticator
	Build         handlers.BuildInfo
	TraceProject  string
}

// Router assembles the HTTP handler with observability middleware and the API routes.
func (c *Container) Router(opts RouterOptions) http.Handler {
	health := handlers.NewHealthHandlers(
		handlers.WithHealthRepository(c.Repositories.Health()),
		handlers.WithHealthBuildInfo(opts.Build),
	)

	assistantOpts := []handlers.AssistantOption{handlers.WithAssistantRateLimiter(c.RateLimiter)}
	if opts.Authenticator != nil {
		assistantOpts = append(assistantOpts, handlers.WithAssistantAuthenticator(opts.Authenticator, c.Config.Features.RequireAuth))
	}
	assistant := handlers.NewAssistantHandlers(c.Assistant, assistantOpts...)

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(c.logger.Named("http")),
			observability.TraceMiddleware(opts.TraceProject),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(c.logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithAssistantRoutes(assistant.Routes),
	)
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}
