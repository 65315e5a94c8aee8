package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultRedisCatalogTTL     = 30 * time.Second
	defaultTurnTopic           = "assistant-turns"
	defaultFuzzyThreshold      = 0.8
	defaultPopularLimit        = 5
	defaultMinMentionLength    = 3
	defaultMaxMessageBytes     = 8192
	defaultAssistantPerMinute  = 60
	defaultSecurityEnvironment = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Redis      RedisConfig
	PubSub     PubSubConfig
	Assistant  AssistantConfig
	RateLimits RateLimitConfig
	Features   FeatureFlags
	Security   SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RedisConfig configures the optional catalog cache and shared rate limiter. An empty Addr disables both.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CatalogTTL time.Duration
}

// PubSubConfig names where assistant turn events are published.
type PubSubConfig struct {
	ProjectID string
	TurnTopic string
}

// AssistantConfig tunes the item-mention resolution engine.
type AssistantConfig struct {
	FuzzyThreshold   float64
	PopularLimit     int
	MinMentionLength int
	MarkdownMessages bool
	MaxMessageBytes  int
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	AssistantPerMinute int
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	TurnEvents  bool
	RequireAuth bool
}

// SecurityConfig names the deployment environment.
type SecurityConfig struct {
	Environment string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks secret fields (e.g. "Redis.Password") that must resolve to a value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Load assembles configuration from defaults, .env overrides, environment variables and
// secret references, in increasing order of precedence for the first three.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	env := envLookup(func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	})

	cfg := Config{
		Server: ServerConfig{
			Port:         env.string("API_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.string("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.string("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.string("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.string("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:       env.string("API_REDIS_ADDR", ""),
			Password:   env.string("API_REDIS_PASSWORD", ""),
			DB:         env.int("API_REDIS_DB", 0),
			CatalogTTL: env.duration("API_REDIS_CATALOG_TTL", defaultRedisCatalogTTL),
		},
		PubSub: PubSubConfig{
			ProjectID: env.string("API_PUBSUB_PROJECT_ID", ""),
			TurnTopic: env.string("API_PUBSUB_TURN_TOPIC", defaultTurnTopic),
		},
		Assistant: AssistantConfig{
			FuzzyThreshold:   env.float("API_ASSISTANT_FUZZY_THRESHOLD", defaultFuzzyThreshold),
			PopularLimit:     env.int("API_ASSISTANT_POPULAR_LIMIT", defaultPopularLimit),
			MinMentionLength: env.int("API_ASSISTANT_MIN_MENTION_LENGTH", defaultMinMentionLength),
			MarkdownMessages: env.bool("API_ASSISTANT_MARKDOWN_MESSAGES", true),
			MaxMessageBytes:  env.int("API_ASSISTANT_MAX_MESSAGE_BYTES", defaultMaxMessageBytes),
		},
		RateLimits: RateLimitConfig{
			AssistantPerMinute: env.int("API_RATELIMIT_ASSISTANT_PER_MIN", defaultAssistantPerMinute),
		},
		Features: FeatureFlags{
			TurnEvents:  env.bool("API_FEATURE_TURN_EVENTS", false),
			RequireAuth: env.bool("API_FEATURE_REQUIRE_AUTH", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.string("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Redis.Password", &cfg.Redis.Password},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		invalid = append(invalid, "Firestore.ProjectID")
	}
	if cfg.Redis.Addr != "" && cfg.Redis.CatalogTTL <= 0 {
		invalid = append(invalid, "Redis.CatalogTTL")
	}
	if cfg.Features.TurnEvents && strings.TrimSpace(cfg.PubSub.TurnTopic) == "" {
		invalid = append(invalid, "PubSub.TurnTopic")
	}
	if cfg.Assistant.FuzzyThreshold <= 0 || cfg.Assistant.FuzzyThreshold > 1 {
		invalid = append(invalid, "Assistant.FuzzyThreshold")
	}
	if cfg.Assistant.PopularLimit <= 0 {
		invalid = append(invalid, "Assistant.PopularLimit")
	}
	if cfg.Assistant.MinMentionLength <= 0 {
		invalid = append(invalid, "Assistant.MinMentionLength")
	}
	if cfg.Assistant.MaxMessageBytes <= 0 {
		invalid = append(invalid, "Assistant.MaxMessageBytes")
	}
	if cfg.RateLimits.AssistantPerMinute <= 0 {
		invalid = append(invalid, "RateLimits.AssistantPerMinute")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
