// Package config loads service configuration from the environment. A .env
// file in the working directory is read first when present; variables that
// are already set take precedence over it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/database"
)

// Config is the complete service configuration.
type Config struct {
	App       AppConfig
	Analysis  AnalysisConfig
	Suppliers SupplierConfig
	Redis     RedisConfig
	Database  database.Config
	Auth      AuthConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level
}

// AnalysisConfig holds pipeline parameters.
type AnalysisConfig struct {
	// DefaultRegion is analysed when a request names no known region.
	DefaultRegion string

	// Seed drives every random draw of the pipeline.
	Seed int64

	// SyntheticDays is the length of the synthetic pollutant series.
	SyntheticDays int

	// DefaultPM25 is the PM2.5 base used without a live reading.
	DefaultPM25 float64

	// Contamination is the expected anomaly share of the multivariate
	// detector.
	Contamination float64
}

// SupplierConfig holds upstream endpoints and credentials. Suppliers without
// a key fall back to synthetic data.
type SupplierConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration

	EONETBaseURL      string
	EONETLookbackDays int

	WAQIToken   string
	WAQIBaseURL string

	OpenWeatherMapKey     string
	OpenWeatherMapBaseURL string

	SeasonalForecastURL string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	OverpassEnabled  bool
	OverpassEndpoint string
}

// RedisConfig configures the optional supplier cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AuthConfig configures operator token validation.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// WorkerConfig configures the background analysis worker.
type WorkerConfig struct {
	ProjectID      string
	SubscriptionID string
	DigestTopicID  string
	Regions        []string
	Concurrency    int
	JobTimeout     time.Duration
	LookbackDays   int

	// Interval schedules local runs when no Pub/Sub project is configured.
	Interval time.Duration
}

// Load reads the configuration.
func Load() Config {
	_ = godotenv.Load() //nolint:errcheck // the .env file is optional

	return Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnvAsLevel("LOG_LEVEL", zerolog.InfoLevel),
		},
		Analysis: AnalysisConfig{
			DefaultRegion: getEnv("DEFAULT_REGION", "Nagpur"),
			Seed:          int64(getEnvAsInt("ANALYSIS_SEED", 42)),
			SyntheticDays: getEnvAsInt("SYNTHETIC_DAYS", 10),
			DefaultPM25:   getEnvAsFloat("DEFAULT_PM25", 70),
			Contamination: getEnvAsFloat("ANOMALY_CONTAMINATION", 0.1),
		},
		Suppliers: SupplierConfig{
			Timeout:               getEnvAsDuration("SUPPLIER_TIMEOUT", 10*time.Second),
			CacheTTL:              getEnvAsDuration("SUPPLIER_CACHE_TTL", 15*time.Minute),
			EONETBaseURL:          getEnv("EONET_BASE_URL", "https://eonet.gsfc.nasa.gov/api/v3"),
			EONETLookbackDays:     getEnvAsInt("EONET_LOOKBACK_DAYS", 60),
			WAQIToken:             os.Getenv("WAQI_TOKEN"),
			WAQIBaseURL:           getEnv("WAQI_BASE_URL", "https://api.waqi.info"),
			OpenWeatherMapKey:     os.Getenv("OPENWEATHERMAP_API_KEY"),
			OpenWeatherMapBaseURL: getEnv("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			SeasonalForecastURL:   os.Getenv("SEASONAL_FORECAST_URL"),
			OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OverpassEnabled:       getEnvAsBool("OVERPASS_ENABLED", false),
			OverpassEndpoint:      getEnv("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: database.Config{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "airexposure"),
			Password:        getEnv("DB_PASSWORD", "localdev"),
			Database:        getEnv("DB_NAME", "airexposure"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:     getEnv("JWT_ISSUER", "airexposure"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		Worker: WorkerConfig{
			ProjectID:      os.Getenv("PUBSUB_PROJECT_ID"),
			SubscriptionID: getEnv("PUBSUB_SUBSCRIPTION", "analysis-jobs"),
			DigestTopicID:  os.Getenv("PUBSUB_DIGEST_TOPIC"),
			Regions:        getEnvAsList("WORKER_REGIONS"),
			Concurrency:    getEnvAsInt("WORKER_CONCURRENCY", 3),
			JobTimeout:     getEnvAsDuration("WORKER_JOB_TIMEOUT", 30*time.Second),
			LookbackDays:   getEnvAsInt("WORKER_LOOKBACK_DAYS", 30),
			Interval:       getEnvAsDuration("WORKER_INTERVAL", 24*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsLevel(key string, defaultValue zerolog.Level) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv(key, "")))
	if err != nil || level == zerolog.NoLevel {
		return defaultValue
	}
	return level
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
