package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"cvone/interview/internal/models"
)

// store drivers
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port     string
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	AICallTimeout    time.Duration
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRetryMaxDelay  time.Duration

	StoreDriver string
	MongoURI    string
	MongoDBName string
	PostgresDSN string

	// empty disables event publishing
	RedisAddr     string
	EventsChannel string

	JWTSecret          string
	CORSAllowedOrigins []string

	// zero disables the reaper
	SessionIdleTTL time.Duration
	ReaperSchedule string

	OTelExporter string
	OTelEndpoint string

	LogLevel  string
	LogFormat string

	MaxQuestionCount int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("AI_PROVIDER", "gemini")
	v.SetDefault("AI_CALL_TIMEOUT", "45s")
	v.SetDefault("AI_MAX_RETRIES", 3)
	v.SetDefault("AI_RETRY_BASE_DELAY", "500ms")
	v.SetDefault("AI_RETRY_MAX_DELAY", "8s")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "cvone")
	v.SetDefault("EVENTS_CHANNEL", "interview_events")
	v.SetDefault("SESSION_IDLE_TTL", "24h")
	v.SetDefault("REAPER_SCHEDULE", "@every 15m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("OTEL_EXPORTER", "none")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MAX_QUESTION_COUNT", models.MaxQuestionCount)
}

// LoadConfig reads the environment, after merging an optional .env file
func LoadConfig() (*Config, error) {
	return load(true)
}

// LoadToolConfig is LoadConfig for offline tools that serve no HTTP and
// therefore need no JWT_SECRET
func LoadToolConfig() (*Config, error) {
	return load(false)
}

func load(serving bool) (*Config, error) {
	// a missing .env is fine; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		Port:               v.GetString("PORT"),
		Provider:           strings.ToLower(v.GetString("AI_PROVIDER")),
		GeminiAPIKey:       v.GetString("GEMINI_API_KEY"),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		AICallTimeout:      v.GetDuration("AI_CALL_TIMEOUT"),
		AIMaxRetries:       v.GetInt("AI_MAX_RETRIES"),
		AIRetryBaseDelay:   v.GetDuration("AI_RETRY_BASE_DELAY"),
		AIRetryMaxDelay:    v.GetDuration("AI_RETRY_MAX_DELAY"),
		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDBName:        v.GetString("MONGO_DB_NAME"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		EventsChannel:      v.GetString("EVENTS_CHANNEL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		SessionIdleTTL:     v.GetDuration("SESSION_IDLE_TTL"),
		ReaperSchedule:     v.GetString("REAPER_SCHEDULE"),
		OTelExporter:       strings.ToLower(v.GetString("OTEL_EXPORTER")),
		OTelEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		MaxQuestionCount:   v.GetInt("MAX_QUESTION_COUNT"),
	}
	if err := validateConfig(config, serving); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config, serving bool) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	// Gemini key validation is handled by gemini.NewConfig()

	switch config.StoreDriver {
	case StoreMongo:
		if config.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	case StorePostgres:
		if config.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", config.StoreDriver)
	}

	if serving && config.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if config.AICallTimeout <= 0 {
		return errors.New("AI_CALL_TIMEOUT must be positive")
	}
	if config.AIMaxRetries < 1 {
		return errors.New("AI_MAX_RETRIES must be at least 1")
	}
	if config.MaxQuestionCount < models.MinQuestionCount || config.MaxQuestionCount > models.MaxQuestionCount {
		return fmt.Errorf("MAX_QUESTION_COUNT must be between %d and %d", models.MinQuestionCount, models.MaxQuestionCount)
	}

	switch config.OTelExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unsupported OTEL_EXPORTER %q", config.OTelExporter)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
