package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/techbantu/GharSe-sub003/internal/di"
	"github.com/techbantu/GharSe-sub003/internal/handlers"
	"github.com/techbantu/GharSe-sub003/internal/platform/auth"
	"github.com/techbantu/GharSe-sub003/internal/platform/config"
	pfirestore "github.com/techbantu/GharSe-sub003/internal/platform/firestore"
	"github.com/techbantu/GharSe-sub003/internal/platform/jobs"
	"github.com/techbantu/GharSe-sub003/internal/platform/observability"
	"github.com/techbantu/GharSe-sub003/internal/platform/secrets"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
	firestoreRepo "github.com/techbantu/GharSe-sub003/internal/repositories/firestore"
	"github.com/techbantu/GharSe-sub003/internal/repositories/redisstore"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	var registryOpts []firestoreRepo.RegistryOption
	var containerOpts []di.Option
	containerOpts = append(containerOpts, di.WithLogger(baseLogger))

	redisClient := redisstore.NewClient(cfg.Redis)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		cacheLogger := observability.EventLogger(baseLogger.Named("catalog_cache"))
		registryOpts = append(registryOpts,
			firestoreRepo.WithCatalogDecorator(func(origin repositories.CatalogRepository) repositories.CatalogRepository {
				cached, err := redisstore.NewCachedCatalog(redisstore.CachedCatalogDeps{
					Origin: origin,
					Client: redisClient,
					TTL:    cfg.Redis.CatalogTTL,
					Logger: cacheLogger,
				})
				if err != nil {
					logger.Warn("catalog cache disabled", zap.Error(err))
					return origin
				}
				return cached
			}),
			firestoreRepo.WithHealthChecks(repositories.DependencyCheck{
				Name:     "redis",
				Optional: true,
				Check:    redisstore.PingCheck(redisClient),
			}),
		)
		containerOpts = append(containerOpts, di.WithRedis(redisClient))
	}

	if cfg.Features.TurnEvents {
		publisher, closePublisher, err := newTurnPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialise turn event publisher", zap.Error(err))
		}
		defer closePublisher()
		containerOpts = append(containerOpts, di.WithTurnPublisher(publisher))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, registryOpts...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	authn := newAuthenticator(ctx, logger, cfg)

	router := container.Router(di.RouterOptions{
		Authenticator: authn,
		Build:         buildInfoFromEnv(envValues, cfg, startedAt),
		TraceProject:  cfg.Firebase.ProjectID,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("assistant api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string { return strings.TrimSpace(env[key]) }

	project := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	environment := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(environment),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newTurnPublisher(ctx context.Context, cfg config.Config) (*jobs.PubSubTurnPublisher, func(), error) {
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := jobs.NewPubSubTurnPublisher(client.Topic(cfg.PubSub.TurnTopic))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}, nil
}

// newAuthenticator returns nil when Firebase cannot be initialised and authentication is optional.
func newAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config) *auth.Authenticator {
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		if cfg.Features.RequireAuth {
			logger.Fatal("failed to initialise firebase auth", zap.Error(err))
		}
		logger.Warn("firebase auth unavailable; serving anonymous callers only", zap.Error(err))
		return nil
	}
	return auth.NewAuthenticator(verifier)
}
