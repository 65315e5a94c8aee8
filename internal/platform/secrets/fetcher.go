package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	referencePrefix     = "secret://"
	localEnvironment    = "local"
)

// ErrSecretNotFound is returned when neither Secret Manager nor the local fallback holds the reference.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Secret Manager. In the local environment it
// falls back to a KEY=VALUE file when Secret Manager is unreachable or lacks the secret.
type Fetcher struct {
	client    secretManagerClient
	logger    *zap.Logger
	projectID string
	env       string

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger       *zap.Logger
	env          string
	projectID    string
	fallbackPath string
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithEnvironment names the deployment environment; only "local" enables the fallback file.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) { cfg.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithProject sets the project used for short references like secret://name.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.projectID = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file path.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

// WithClientOptions forwards options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

func withClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// NewFetcher dials Secret Manager unless a client was injected. Outside the local
// environment a dial failure is returned.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		env:          localEnvironment,
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	client := cfg.client
	if client == nil {
		smClient, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		switch {
		case err == nil:
			client = smClient
		case cfg.env == localEnvironment:
			cfg.logger.Warn("secrets: secret manager unavailable; using fallback file", zap.Error(err))
		default:
			return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
		}
	}

	return &Fetcher{
		client:       client,
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		env:          cfg.env,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}, nil
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := f.resourceName(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	value, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err = f.fetch(ctx, name)
	if err != nil {
		if f.env != localEnvironment || !fallbackEligible(err) {
			return "", err
		}
		fallback, ok := f.lookupFallback(ref)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, strings.TrimPrefix(ref, referencePrefix))
		}
		value = fallback
	}

	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()
	return value, nil
}

// Close releases the Secret Manager client.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) fetch(ctx context.Context, name string) (string, error) {
	if f.client == nil {
		return "", status.Error(codes.Unavailable, "secret manager client not configured")
	}
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// resourceName expands secret://name[#version] or a full resource path.
func (f *Fetcher) resourceName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	body, ok := strings.CutPrefix(trimmed, referencePrefix)
	if !ok || body == "" {
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}
	if strings.HasPrefix(body, "projects/") {
		if !strings.Contains(body, "/versions/") {
			body += "/versions/latest"
		}
		return body, nil
	}
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: project not configured for reference %q", ref)
	}
	secret, version, _ := strings.Cut(body, "#")
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, secret, version), nil
}

func (f *Fetcher) lookupFallback(ref string) (string, bool) {
	f.fallbackOnce.Do(func() {
		values, err := readFallbackFile(f.fallbackPath)
		if err != nil {
			f.logger.Debug("secrets: fallback file unavailable", zap.Error(err))
		}
		f.fallback = values
	})
	key := strings.TrimPrefix(strings.TrimSpace(ref), referencePrefix)
	key, _, _ = strings.Cut(key, "#")
	value, ok := f.fallback[key]
	return value, ok
}

func readFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return values, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	return values, scanner.Err()
}

func fallbackEligible(err error) bool {
	switch status.Code(errors.Unwrap(err)) {
	case codes.NotFound, codes.Unavailable, codes.PermissionDenied, codes.Unauthenticated:
		return true
	}
	return status.Code(err) == codes.Unavailable
}
