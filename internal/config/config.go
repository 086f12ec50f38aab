package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
	Escrow   EscrowConfig
	Auth     AuthConfig
	Logger   LoggerConfig
}

// EnvProduction marks a production deployment; the mock gateway driver is
// refused under it.
const EnvProduction = "production"

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig configures the optional domain-event relay. Empty brokers
// disable the relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Gateway driver names.
const (
	GatewayDriverMock    = "mock"
	GatewayDriverPayrail = "payrail"
)

// GatewayConfig selects and configures the payment gateway driver. The
// driver is an explicit injected value; nothing reads it from ambient
// global state after construction.
type GatewayConfig struct {
	Driver         string
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Timeout returns the bounded per-call gateway timeout.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Validate policies for the release step.
const (
	ValidatePolicyOwner         = "owner"
	ValidatePolicyOwnerOrTenant = "owner_or_tenant"
)

// EscrowConfig controls settlement behavior.
type EscrowConfig struct {
	// ValidatePolicy decides who may validate completed work: the owner
	// alone, or owner and tenant both.
	ValidatePolicy string
	// PlatformFeeBps is the fee retained at release time, in basis points
	// of the settled amount. Zero disables the fee.
	PlatformFeeBps int64
	// IdempotencyTTLHours bounds how long recorded gateway results are
	// kept for replay.
	IdempotencyTTLHours int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "maintenance-escrow"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "maintenance.ticket-events"),
		},
		Gateway: GatewayConfig{
			Driver:         getEnv("GATEWAY_DRIVER", GatewayDriverMock),
			BaseURL:        os.Getenv("GATEWAY_BASE_URL"),
			APIKey:         os.Getenv("GATEWAY_API_KEY"),
			TimeoutSeconds: getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 15),
		},
		Escrow: EscrowConfig{
			ValidatePolicy:      getEnv("ESCROW_VALIDATE_POLICY", ValidatePolicyOwner),
			PlatformFeeBps:      int64(getEnvAsInt("ESCROW_PLATFORM_FEE_BPS", 0)),
			IdempotencyTTLHours: getEnvAsInt("ESCROW_IDEMPOTENCY_TTL_HOURS", 24),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
	}

	if cfg.Escrow.ValidatePolicy != ValidatePolicyOwner && cfg.Escrow.ValidatePolicy != ValidatePolicyOwnerOrTenant {
		return nil, fmt.Errorf("invalid ESCROW_VALIDATE_POLICY %q", cfg.Escrow.ValidatePolicy)
	}
	if cfg.Escrow.PlatformFeeBps < 0 || cfg.Escrow.PlatformFeeBps >= 10000 {
		return nil, fmt.Errorf("invalid ESCROW_PLATFORM_FEE_BPS %d", cfg.Escrow.PlatformFeeBps)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitNonEmpty(val string) []string {
	if val == "" {
		return nil
	}
	parts := []string{}
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
