package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/richxcame/driver-verification/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Storage       StorageConfig
	NATS          NATSConfig
	Notifications NotificationsConfig
	Secrets       secrets.Config
	Tracing       TracingConfig
	Sentry        SentryConfig
	RateLimit     RateLimitConfig
	Resilience    ResilienceConfig
	Timeout       TimeoutConfig

	secretProvider secrets.Provider
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	Version      string
	LogLevel     string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	ReadTimeout  int
	WriteTimeout int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// StorageConfig describes the S3-compatible bucket that holds document files.
type StorageConfig struct {
	Bucket         string
	Region         string
	Endpoint       string // non-empty for MinIO or other S3-compatible endpoints
	AccessKey      string
	SecretKey      string
	PublicURL      string
	UsePathStyle   bool
	MaxUploadMB    int
	PresignMinutes int
}

// NATSConfig holds JetStream connection settings
type NATSConfig struct {
	URL     string
	Enabled bool
}

// NotificationsConfig holds push and SMS provider settings
type NotificationsConfig struct {
	FirebaseCredentialsPath string
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// SentryConfig holds error tracking settings
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	WindowSeconds     int
	DefaultLimit      int
	DefaultBurst      int
	AnonymousLimit    int
	AnonymousBurst    int
	RedisPrefix       string
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig allows customizing limits per endpoint
type EndpointRateLimitConfig struct {
	AuthenticatedLimit int `json:"authenticated_limit"`
	AuthenticatedBurst int `json:"authenticated_burst"`
	AnonymousLimit     int `json:"anonymous_limit"`
	AnonymousBurst     int `json:"anonymous_burst"`
	WindowSeconds      int `json:"window_seconds"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Default timeouts, in seconds.
const (
	DefaultRequestTimeout       = 30
	DefaultUploadRequestTimeout = 120
	DefaultDatabaseQueryTimeout = 10
	DefaultShutdownTimeout      = 15
)

// TimeoutConfig bounds request handling. Upload routes get a longer budget
// because they stream the file to object storage.
type TimeoutConfig struct {
	DefaultRequestTimeout int
	UploadRequestTimeout  int
	DatabaseQueryTimeout  int
	ShutdownTimeout       int
}

// secretKeys are the configuration values that a secrets provider may override.
var secretKeys = []string{
	"DB_PASSWORD",
	"JWT_SECRET",
	"STORAGE_ACCESS_KEY",
	"STORAGE_SECRET_KEY",
	"TWILIO_AUTH_TOKEN",
	"SENTRY_DSN",
}

// Load reads configuration from the environment (and .env when present), then
// overlays values from the configured secrets provider.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			Version:      getEnv("SERVICE_VERSION", "1.0.0"),
			LogLevel:     getEnv("LOG_LEVEL", ""),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 130),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "driver_verification"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://db/migrations"),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			ReadTimeout:  getEnvAsInt("REDIS_READ_TIMEOUT", 3),
			WriteTimeout: getEnvAsInt("REDIS_WRITE_TIMEOUT", 3),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Storage: StorageConfig{
			Bucket:         getEnv("STORAGE_BUCKET", "driver-documents"),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
			PublicURL:      getEnv("STORAGE_PUBLIC_URL", ""),
			UsePathStyle:   getEnvAsBool("STORAGE_USE_PATH_STYLE", false),
			MaxUploadMB:    getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10),
			PresignMinutes: getEnvAsInt("STORAGE_PRESIGN_MINUTES", 15),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Notifications: NotificationsConfig{
			FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber:        getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Secrets: secrets.Config{
			Provider:       secrets.ProviderType(strings.ToLower(getEnv("SECRETS_PROVIDER", string(secrets.ProviderEnv)))),
			AWSRegion:      getEnv("SECRETS_AWS_REGION", getEnv("STORAGE_REGION", "us-east-1")),
			AWSSecretID:    getEnv("SECRETS_AWS_SECRET_ID", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultPath:      getEnv("VAULT_SECRET_PATH", serviceName),
			GCPProjectID:   getEnv("SECRETS_GCP_PROJECT_ID", ""),
			GCPPrefix:      getEnv("SECRETS_GCP_PREFIX", ""),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 120),
			DefaultBurst:   getEnvAsInt("RATE_LIMIT_DEFAULT_BURST", 40),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON_LIMIT", 60),
			AnonymousBurst: getEnvAsInt("RATE_LIMIT_ANON_BURST", 20),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Timeout: TimeoutConfig{
			DefaultRequestTimeout: getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
			UploadRequestTimeout:  getEnvAsInt("UPLOAD_REQUEST_TIMEOUT", DefaultUploadRequestTimeout),
			DatabaseQueryTimeout:  getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
			ShutdownTimeout:       getEnvAsInt("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		},
	}

	if overrides := getEnv("RATE_LIMIT_ENDPOINTS", ""); overrides != "" {
		var endpointConfig map[string]EndpointRateLimitConfig
		if err := json.Unmarshal([]byte(overrides), &endpointConfig); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENDPOINTS value: %w", err)
		}
		cfg.RateLimit.EndpointOverrides = endpointConfig
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if cfg.Secrets.Provider != secrets.ProviderEnv && cfg.Secrets.Provider != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		provider, err := secrets.NewProvider(ctx, cfg.Secrets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
		}
		cfg.secretProvider = provider

		if err := cfg.ApplySecrets(ctx, provider); err != nil {
			_ = provider.Close()
			return nil, err
		}
	}

	cfg.applyDefaults()

	return cfg, nil
}

// ApplySecrets overrides sensitive values with those held by the provider.
// Keys the provider does not know are left untouched.
func (c *Config) ApplySecrets(ctx context.Context, provider secrets.Provider) error {
	for _, key := range secretKeys {
		value, err := provider.Get(ctx, key)
		if err != nil {
			if secrets.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to read secret %s: %w", key, err)
		}

		switch key {
		case "DB_PASSWORD":
			c.Database.Password = value
		case "JWT_SECRET":
			c.JWT.Secret = value
		case "STORAGE_ACCESS_KEY":
			c.Storage.AccessKey = value
		case "STORAGE_SECRET_KEY":
			c.Storage.SecretKey = value
		case "TWILIO_AUTH_TOKEN":
			c.Notifications.TwilioAuthToken = value
		case "SENTRY_DSN":
			c.Sentry.DSN = value
		}
	}
	return nil
}

// Close releases the secrets provider, if any.
func (c *Config) Close() error {
	if c.secretProvider != nil {
		return c.secretProvider.Close()
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = int(time.Minute.Seconds())
	}

	cb := &c.Resilience.CircuitBreaker
	if cb.TimeoutSeconds <= 0 {
		cb.TimeoutSeconds = 30
	}
	if cb.IntervalSeconds <= 0 {
		cb.IntervalSeconds = 60
	}
	if cb.FailureThreshold <= 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold <= 0 {
		cb.SuccessThreshold = 1
	}

	if c.Storage.MaxUploadMB <= 0 {
		c.Storage.MaxUploadMB = 10
	}
	if c.Storage.PresignMinutes <= 0 {
		c.Storage.PresignMinutes = 15
	}

	t := &c.Timeout
	if t.DefaultRequestTimeout <= 0 {
		t.DefaultRequestTimeout = DefaultRequestTimeout
	}
	if t.UploadRequestTimeout <= 0 {
		t.UploadRequestTimeout = DefaultUploadRequestTimeout
	}
	if t.DatabaseQueryTimeout <= 0 {
		t.DatabaseQueryTimeout = DefaultDatabaseQueryTimeout
	}
	if t.ShutdownTimeout <= 0 {
		t.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// DSN returns the pgx connection URL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c StorageConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// PresignExpiry returns how long presigned download URLs stay valid.
func (c StorageConfig) PresignExpiry() time.Duration {
	return time.Duration(c.PresignMinutes) * time.Minute
}

// Window returns the configured rate limit window duration
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}
