// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pushauth/backend/internal/signature"
)

// Store drivers for users and devices (STORE_DRIVER) and for challenges (CHALLENGE_STORE).
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	ChallengeStoreSQL   = "sql"
	ChallengeStoreRedis = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health service (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// StoreDriver selects the user/device store: memory, postgres or sqlite.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the database file when StoreDriver is sqlite.
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	// RedisURL enables the Redis rate limiter and, with ChallengeStore=redis, the Redis challenge store.
	RedisURL string `mapstructure:"REDIS_URL"`
	// ChallengeStore is "sql" (challenges live with devices in StoreDriver) or "redis".
	ChallengeStore string `mapstructure:"CHALLENGE_STORE"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim shared with the primary login system.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim shared with the primary login system.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the lifetime of access tokens minted by the seed tool (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// SessionLifetime is the step-up credential lifetime (e.g. "24h").
	SessionLifetime string `mapstructure:"SESSION_TTL"`
	// ChallengeLifetime is how long a challenge stays answerable (e.g. "5m").
	ChallengeLifetime string `mapstructure:"CHALLENGE_TTL"`
	// SweepEvery is the expiry sweep period (e.g. "30s").
	SweepEvery string `mapstructure:"SWEEP_INTERVAL"`
	// SignatureAlgorithms is the comma-separated list of device key algorithms accepted on link.
	SignatureAlgorithms string `mapstructure:"SIGNATURE_ALGORITHMS"`
	// AuthzPolicyFile is an optional Rego policy replacing the built-in ownership policy.
	AuthzPolicyFile string `mapstructure:"AUTHZ_POLICY_FILE"`
	// BcryptCost is the bcrypt cost factor (4–31) used by the seed tool; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// FCMCredentialsFile is a Firebase service account JSON; enables FCM delivery.
	FCMCredentialsFile string `mapstructure:"FCM_CREDENTIALS_FILE"`
	// VAPIDPublicKey and VAPIDPrivateKey enable Web Push delivery.
	VAPIDPublicKey  string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"VAPID_PRIVATE_KEY"`
	// VAPIDSubscriber is the contact sent to push services (mailto: or https: URL).
	VAPIDSubscriber string `mapstructure:"VAPID_SUBSCRIBER"`

	// ChallengeRateLimit is the max challenges a user may request per window; 0 disables the limit.
	ChallengeRateLimit int `mapstructure:"CHALLENGE_RATE_LIMIT"`
	// RateWindow is the rate limit window (e.g. "1m").
	RateWindow string `mapstructure:"CHALLENGE_RATE_WINDOW"`
	// CORSAllowedOrigins is a comma-separated origin list ("*" allows any).
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. "localhost:4317").
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName is the service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, lifecycle events are also produced to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// Worker-only: KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "pushauth.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CHALLENGE_STORE", ChallengeStoreSQL)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "pushauth")
	v.SetDefault("JWT_AUDIENCE", "pushauth-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("CHALLENGE_TTL", "5m")
	v.SetDefault("SWEEP_INTERVAL", "30s")
	v.SetDefault("SIGNATURE_ALGORITHMS", "ed25519,ecdsa-p256-sha256,ml-dsa-44,ml-dsa-65,ml-dsa-87")
	v.SetDefault("AUTHZ_POLICY_FILE", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("FCM_CREDENTIALS_FILE", "")
	v.SetDefault("VAPID_PUBLIC_KEY", "")
	v.SetDefault("VAPID_PRIVATE_KEY", "")
	v.SetDefault("VAPID_SUBSCRIBER", "")
	v.SetDefault("CHALLENGE_RATE_LIMIT", 5)
	v.SetDefault("CHALLENGE_RATE_WINDOW", "1m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "pushauth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "pushauth-telemetry")
	v.SetDefault("KAFKA_GROUP_ID", "pushauth-telemetry-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: STORE_DRIVER must be memory, postgres or sqlite, got %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreSQLite && c.SQLitePath == "" {
		return errors.New("config: SQLITE_PATH must be set when STORE_DRIVER=sqlite")
	}
	switch c.ChallengeStore {
	case ChallengeStoreSQL:
	case ChallengeStoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when CHALLENGE_STORE=redis")
		}
	default:
		return fmt.Errorf("config: CHALLENGE_STORE must be sql or redis, got %q", c.ChallengeStore)
	}
	if c.Env == "production" && (c.JWTPrivateKey == "" || c.JWTPublicKey == "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}
	if len(c.Algorithms()) == 0 {
		return errors.New("config: SIGNATURE_ALGORITHMS must list at least one algorithm")
	}
	for _, a := range c.Algorithms() {
		if _, err := signature.ParseAlgorithm(a); err != nil {
			return fmt.Errorf("config: SIGNATURE_ALGORITHMS: %w", err)
		}
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.ChallengeRateLimit < 0 {
		return errors.New("config: CHALLENGE_RATE_LIMIT must not be negative")
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return errors.New("config: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return parseDuration(c.JWTAccessTTL, 15*time.Minute) }

// SessionTTL parses SessionLifetime. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return parseDuration(c.SessionLifetime, 24*time.Hour) }

// ChallengeTTL parses ChallengeLifetime. Returns 5m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration { return parseDuration(c.ChallengeLifetime, 5*time.Minute) }

// SweepInterval parses SweepEvery. Returns 30s if unset or invalid.
func (c *Config) SweepInterval() time.Duration { return parseDuration(c.SweepEvery, 30*time.Second) }

// ChallengeRateWindow parses RateWindow. Returns 1m if unset or invalid.
func (c *Config) ChallengeRateWindow() time.Duration { return parseDuration(c.RateWindow, time.Minute) }

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string { return splitList(c.CORSAllowedOrigins) }

// Algorithms returns the enabled signature algorithm names.
func (c *Config) Algorithms() []string { return splitList(c.SignatureAlgorithms) }

// WebPushEnabled reports whether VAPID keys are configured.
func (c *Config) WebPushEnabled() bool { return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
