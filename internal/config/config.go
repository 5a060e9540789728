package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type MonitoringServiceConfig struct {
	Port        string
	APIKey      string
	LogDir      string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	GatewayCfg  GatewayConfig
	PipelineCfg PipelineConfig
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GatewayMode selects the imagery backend. Synthetic data is never used unless asked for.
type GatewayMode string

const (
	GatewayModeHTTP      GatewayMode = "http"
	GatewayModeSynthetic GatewayMode = "synthetic"
)

type GatewayConfig struct {
	Mode            GatewayMode
	BaseURL         string
	Token           string
	DefaultProvider string
	RequestTimeout  time.Duration
	ReadyTTL        time.Duration
	MaxRetries      int
	RatePerSecond   float64
	Burst           int
}

type PipelineConfig struct {
	Workers         int
	QueueWorkers    int
	ImageTimeout    time.Duration
	ConfigTimeout   time.Duration
	JobTimeout      time.Duration
	JobMaxRetries   int
	DaysBack        int
	RetentionDays   int
	PipelineCron    string
	RetentionCron   string
	ArchiveRuns     bool
	QueueName       string
	SchedulerActive bool
}

// New loads .env when present, then reads the environment.
func New() *MonitoringServiceConfig {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	return &MonitoringServiceConfig{
		Port:   getEnvOrDefault("PORT", "8087"),
		APIKey: getEnvOrDefault("API_KEY", ""),
		LogDir: getEnvOrDefault("LOG_DIR", "/agrisa/log/monitoring_service"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "monitoring"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		GatewayCfg: GatewayConfig{
			Mode:            GatewayMode(getEnvOrDefault("GATEWAY_MODE", string(GatewayModeHTTP))),
			BaseURL:         getEnvOrDefault("GATEWAY_BASE_URL", "http://localhost:8090"),
			Token:           getEnvOrDefault("GATEWAY_TOKEN", ""),
			DefaultProvider: getEnvOrDefault("GATEWAY_PROVIDER", "SENTINEL2"),
			RequestTimeout:  getDurationOrDefault("GATEWAY_REQUEST_TIMEOUT", 30*time.Second),
			ReadyTTL:        getDurationOrDefault("GATEWAY_READY_TTL", 5*time.Minute),
			MaxRetries:      getIntOrDefault("GATEWAY_MAX_RETRIES", 3),
			RatePerSecond:   getFloatOrDefault("GATEWAY_RATE_PER_SECOND", 5),
			Burst:           getIntOrDefault("GATEWAY_BURST", 10),
		},
		PipelineCfg: PipelineConfig{
			Workers:         getIntOrDefault("PIPELINE_WORKERS", 4),
			QueueWorkers:    getIntOrDefault("QUEUE_WORKERS", 4),
			ImageTimeout:    getDurationOrDefault("IMAGE_TIMEOUT", 60*time.Second),
			ConfigTimeout:   getDurationOrDefault("CONFIG_TIMEOUT", 15*time.Minute),
			JobTimeout:      getDurationOrDefault("JOB_TIMEOUT", 2*time.Hour),
			JobMaxRetries:   getIntOrDefault("JOB_MAX_RETRIES", 3),
			DaysBack:        getIntOrDefault("PIPELINE_DAYS_BACK", 30),
			RetentionDays:   getIntOrDefault("RETENTION_DAYS", 365),
			PipelineCron:    getEnvOrDefault("PIPELINE_CRON", "0 2 * * *"),
			RetentionCron:   getEnvOrDefault("RETENTION_CRON", "30 3 * * *"),
			ArchiveRuns:     getBoolOrDefault("ARCHIVE_RUNS", true),
			QueueName:       getEnvOrDefault("JOB_QUEUE_NAME", "monitoring:jobs"),
			SchedulerActive: getBoolOrDefault("SCHEDULER_ACTIVE", true),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnvOrDefault(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
