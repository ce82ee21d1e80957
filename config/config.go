package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvironmentProduction = "production"
	EnvironmentStaging    = "staging"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	GRPC     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Auth     AuthConfig
	Maviance MavianceConfig
	Payments PaymentsConfig
	Jobs     JobsConfig
	Redis    RedisConfig
}

type AppConfig struct {
	ServiceName   string
	Environment   string
	APIKey        string
	PublicBaseURL string
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	JWTSecret string
}

type MavianceConfig struct {
	PublicKey      string
	SecretKey      string
	BaseURL        string
	MerchantNumber string
	WebhookSecret  string
	TokenTimeout   time.Duration
	HTTPTimeout    time.Duration
}

type PaymentsConfig struct {
	Provider             string
	Currency             string
	ReferencePrefix      string
	DefaultAmount        int64
	DefaultDescription   string
	SubscriptionPlan     string
	SubscriptionDuration time.Duration
	PendingTimeout       time.Duration
	ReconcileStaleAfter  time.Duration
	JobBatchSize         int32
}

type JobsConfig struct {
	ReconcileInterval     time.Duration
	ExpirePendingInterval time.Duration
}

type RedisConfig struct {
	Addr                string
	Password            string
	DB                  int
	InitializePerMinute int
	RateLimitFailOpen   bool
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	environment := strings.ToLower(getEnv("APP_ENV", EnvironmentStaging))

	cfg := &Config{
		App: AppConfig{
			ServiceName:   getEnv("APP_SERVICE_NAME", "mobile-payments-service"),
			Environment:   environment,
			APIKey:        getEnv("APP_API_KEY", ""),
			PublicBaseURL: strings.TrimRight(getEnv("APP_PUBLIC_BASE_URL", ""), "/"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("HTTP_PORT", "4000")),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             os.Getenv("MYSQL_DSN"),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Maviance: MavianceConfig{
			PublicKey:      os.Getenv("MAVIANCE_PUBLIC_KEY"),
			SecretKey:      os.Getenv("MAVIANCE_SECRET_KEY"),
			BaseURL:        strings.TrimRight(getEnv("MAVIANCE_BASE_URL", "https://s3p.smobilpay.staging.maviance.info/v2"), "/"),
			MerchantNumber: os.Getenv("MAVIANCE_MERCHANT_NUMBER"),
			WebhookSecret:  os.Getenv("MAVIANCE_WEBHOOK_SECRET"),
			TokenTimeout:   getSecondsEnv("MAVIANCE_TOKEN_TIMEOUT_SECONDS", 10*time.Second),
			HTTPTimeout:    getSecondsEnv("MAVIANCE_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Payments: PaymentsConfig{
			Provider:             getEnv("PAYMENTS_PROVIDER", "maviance"),
			Currency:             strings.ToUpper(getEnv("PAYMENTS_CURRENCY", "XAF")),
			ReferencePrefix:      getEnv("PAYMENTS_REFERENCE_PREFIX", "KAM"),
			DefaultAmount:        int64(getIntEnv("PAYMENTS_DEFAULT_AMOUNT", 1000)),
			DefaultDescription:   getEnv("PAYMENTS_DEFAULT_DESCRIPTION", "Abonnement Premium Kamerun News"),
			SubscriptionPlan:     getEnv("PAYMENTS_SUBSCRIPTION_PLAN", "premium"),
			SubscriptionDuration: getDaysEnv("PAYMENTS_SUBSCRIPTION_DAYS", 365*24*time.Hour),
			PendingTimeout:       getMinutesEnv("PAYMENTS_PENDING_TIMEOUT_MINUTES", 24*time.Hour),
			ReconcileStaleAfter:  getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 5*time.Minute),
			JobBatchSize:         int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval:     getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:                getEnv("REDIS_ADDR", ""),
			Password:            getEnv("REDIS_PASSWORD", ""),
			DB:                  getIntEnv("REDIS_DB", 0),
			InitializePerMinute: getIntEnv("RATE_LIMIT_INITIALIZE_PER_MINUTE", 10),
			RateLimitFailOpen:   getBoolEnv("RATE_LIMIT_FAIL_OPEN", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MYSQL_DSN", c.MySQL.DSN},
		{"AUTH_JWT_SECRET", c.Auth.JWTSecret},
		{"MAVIANCE_PUBLIC_KEY", c.Maviance.PublicKey},
		{"MAVIANCE_SECRET_KEY", c.Maviance.SecretKey},
		{"MAVIANCE_MERCHANT_NUMBER", c.Maviance.MerchantNumber},
	}
	if c.App.IsProduction() {
		required = append(required, struct {
			key   string
			value string
		}{"MAVIANCE_WEBHOOK_SECRET", c.Maviance.WebhookSecret})
	}

	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			return fmt.Errorf("%s environment variable is required", item.key)
		}
	}

	if c.Payments.DefaultAmount <= 0 {
		return errors.New("PAYMENTS_DEFAULT_AMOUNT must be > 0")
	}
	if len(c.Payments.Currency) != 3 {
		return errors.New("PAYMENTS_CURRENCY must be 3 letters")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getDaysEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if days, err := strconv.Atoi(value); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	return defaultValue
}
