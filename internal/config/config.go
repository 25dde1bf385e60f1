package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type HTTPTimeoutsConfig struct {
	Read     time.Duration
	Idle     time.Duration
	Write    time.Duration
	Shutdown time.Duration // how long we give the shutdown process to gracefully terminate
}

type HTTPConfig struct {
	Port     int
	Timeouts HTTPTimeoutsConfig
}

type RateLimiterConfig struct {
	RPS   int
	Burst int
}

type LoggerConfig struct {
	Level slog.Level
}

type AppConfig struct {
	Name        string
	Environment string // 'dev' | 'prod'
	StoreURL    string // default store location used when the caller provides none
}

type DBConfig struct {
	Path           string
	MigrationsPath string
}

// Storage modes for picture binaries.
const (
	StorageModeDB   = "db"   // BLOB column in the pictures table
	StorageModeFile = "file" // local filesystem under MediaRoot
	StorageModeS3   = "s3"   // S3-compatible object storage
)

const defaultTokenNamespace = "7f1c8a00-52de-47b9-93f1-8a46cc1e0d42"

type MediaConfig struct {
	StorageMode     string
	MediaRoot       string // base dir for the local blob store
	MaxUploadBytes  int64
	MaxImageWidth   int
	MaxImageHeight  int
	ThumbnailSizes  []int  // allowed variant widths, ascending
	DefaultImage    string // served when an entity has no picture
	DefaultAvatar   string // served when a customer has no avatar
	TokenNamespace  string // UUIDv5 namespace for public picture tokens
	VariantWorkers  int
	VariantQueueLen int
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type ProxyConfig struct {
	Trusted bool
}

type TelemetryConfig struct {
	EnableTelemetry bool
	OtelEndpoint    string
}

type Config struct {
	App     AppConfig
	DB      DBConfig
	Media   MediaConfig
	S3      S3Config
	Proxy   ProxyConfig
	HTTP    HTTPConfig
	Limiter RateLimiterConfig
	Logger  LoggerConfig
	Metrics TelemetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "mediastore",
			Environment: "prod",
			StoreURL:    "http://localhost:3000",
		},
		DB: DBConfig{
			Path:           "mediastore.db",
			MigrationsPath: "./migrations",
		},
		Media: MediaConfig{
			StorageMode:     StorageModeFile,
			MediaRoot:       "./media",
			MaxUploadBytes:  10 << 20, // 10 MiB
			MaxImageWidth:   4096,
			MaxImageHeight:  4096,
			ThumbnailSizes:  []int{100, 300, 600, 1200},
			DefaultImage:    "default-image",
			DefaultAvatar:   "default-avatar",
			TokenNamespace:  defaultTokenNamespace,
			VariantWorkers:  4,
			VariantQueueLen: 50,
		},
		S3: S3Config{
			Endpoint: "http://localhost:9000",
			Region:   "us-east-1",
			Bucket:   "media",
		},
		Proxy: ProxyConfig{
			Trusted: false,
		},
		HTTP: HTTPConfig{
			Port: 3000,
			Timeouts: HTTPTimeoutsConfig{
				Read:     5 * time.Second,
				Write:    30 * time.Second,
				Idle:     10 * time.Minute,
				Shutdown: 10 * time.Second,
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   50,
			Burst: 100,
		},
		Logger: LoggerConfig{
			Level: slog.LevelInfo,
		},
		Metrics: TelemetryConfig{
			OtelEndpoint: "localhost:4318",
		},
	}
}

func LoadWithDefaults() *Config {
	defaults := DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", defaults.App.Name),
			Environment: getEnv("APP_ENV", defaults.App.Environment),
			StoreURL:    getEnv("APP_STORE_URL", defaults.App.StoreURL),
		},
		DB: DBConfig{
			Path:           getEnv("DB_PATH", defaults.DB.Path),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", defaults.DB.MigrationsPath),
		},
		Media: MediaConfig{
			StorageMode:     getEnv("MEDIA_STORAGE_MODE", defaults.Media.StorageMode),
			MediaRoot:       getEnv("MEDIA_ROOT", defaults.Media.MediaRoot),
			MaxUploadBytes:  getEnvAsInt64("MEDIA_MAX_UPLOAD_BYTES", defaults.Media.MaxUploadBytes),
			MaxImageWidth:   getEnvAsInt("MEDIA_MAX_WIDTH", defaults.Media.MaxImageWidth),
			MaxImageHeight:  getEnvAsInt("MEDIA_MAX_HEIGHT", defaults.Media.MaxImageHeight),
			ThumbnailSizes:  getEnvAsIntSlice("MEDIA_THUMBNAIL_SIZES", defaults.Media.ThumbnailSizes),
			DefaultImage:    getEnv("MEDIA_DEFAULT_IMAGE", defaults.Media.DefaultImage),
			DefaultAvatar:   getEnv("MEDIA_DEFAULT_AVATAR", defaults.Media.DefaultAvatar),
			TokenNamespace:  getEnv("MEDIA_TOKEN_NAMESPACE", defaults.Media.TokenNamespace),
			VariantWorkers:  getEnvAsInt("MEDIA_VARIANT_WORKERS", defaults.Media.VariantWorkers),
			VariantQueueLen: getEnvAsInt("MEDIA_VARIANT_QUEUE", defaults.Media.VariantQueueLen),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", defaults.S3.Endpoint),
			Region:    getEnv("S3_REGION", defaults.S3.Region),
			AccessKey: getEnv("S3_ACCESS_KEY", defaults.S3.AccessKey),
			SecretKey: getEnv("S3_SECRET_KEY", defaults.S3.SecretKey),
			Bucket:    getEnv("S3_BUCKET", defaults.S3.Bucket),
		},
		Proxy: ProxyConfig{
			Trusted: getEnvAsBool("PROXY_TRUSTED", defaults.Proxy.Trusted),
		},
		HTTP: HTTPConfig{
			Port: getEnvAsInt("HTTP_PORT", defaults.HTTP.Port),
			Timeouts: HTTPTimeoutsConfig{
				Read:     getEnvAsDuration("HTTP_READ_TIMEOUT", defaults.HTTP.Timeouts.Read),
				Write:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", defaults.HTTP.Timeouts.Write),
				Idle:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", defaults.HTTP.Timeouts.Idle),
				Shutdown: getEnvAsDuration("HTTP_SHUTDOWN_DELAY", defaults.HTTP.Timeouts.Shutdown),
			},
		},
		Limiter: RateLimiterConfig{
			RPS:   getEnvAsInt("LIMITER_RPS", defaults.Limiter.RPS),
			Burst: getEnvAsInt("LIMITER_BURST", defaults.Limiter.Burst),
		},
		Logger: LoggerConfig{
			Level: getEnvAsLogLevel("LOGGER_LEVEL", defaults.Logger.Level),
		},
		Metrics: TelemetryConfig{
			EnableTelemetry: getEnvAsBool("ENABLE_TELEMETRY", false),
			OtelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", defaults.Metrics.OtelEndpoint),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsIntSlice parses a comma-separated list of positive ints, e.g. "100,300,600"
func getEnvAsIntSlice(key string, fallback []int) []int {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	var values []int
	for part := range strings.SplitSeq(valueStr, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || value <= 0 {
			return fallback
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return fallback
	}

	slices.Sort(values)
	return values
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsLogLevel(key string, fallback slog.Level) slog.Level {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	switch strings.ToLower(valueStr) {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("APP_NAME must not be empty")
	}
	if s := strings.ToLower(c.App.Environment); s != "dev" && s != "prod" {
		return fmt.Errorf(`APP_ENV must be "dev" or "prod"`)
	}
	if !strings.HasPrefix(c.App.StoreURL, "http://") && !strings.HasPrefix(c.App.StoreURL, "https://") {
		return fmt.Errorf("APP_STORE_URL must be an absolute http(s) URL, got %q", c.App.StoreURL)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.DB.MigrationsPath == "" {
		return fmt.Errorf("DB_MIGRATIONS_PATH must not be empty")
	}
	switch c.Media.StorageMode {
	case StorageModeDB, StorageModeFile, StorageModeS3:
	default:
		return fmt.Errorf(`MEDIA_STORAGE_MODE must be "db", "file" or "s3", got %q`, c.Media.StorageMode)
	}
	if c.Media.StorageMode == StorageModeFile && c.Media.MediaRoot == "" {
		return fmt.Errorf("MEDIA_ROOT must not be empty when storing on the filesystem")
	}
	if c.Media.StorageMode == StorageModeS3 {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET must not be empty when storing on s3")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set when storing on s3")
		}
	}
	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_BYTES must be positive, got %d", c.Media.MaxUploadBytes)
	}
	if c.Media.MaxImageWidth <= 0 || c.Media.MaxImageHeight <= 0 {
		return fmt.Errorf("MEDIA_MAX_WIDTH and MEDIA_MAX_HEIGHT must be positive")
	}
	if len(c.Media.ThumbnailSizes) == 0 {
		return fmt.Errorf("MEDIA_THUMBNAIL_SIZES must list at least one size")
	}
	for _, size := range c.Media.ThumbnailSizes {
		if size <= 0 || size > c.Media.MaxImageWidth {
			return fmt.Errorf("thumbnail size %d out of range (0, %d]", size, c.Media.MaxImageWidth)
		}
	}
	if c.Media.VariantWorkers <= 0 {
		return fmt.Errorf("MEDIA_VARIANT_WORKERS must be positive, got %d", c.Media.VariantWorkers)
	}
	if c.Media.VariantQueueLen <= 0 {
		return fmt.Errorf("MEDIA_VARIANT_QUEUE must be positive, got %d", c.Media.VariantQueueLen)
	}
	if _, err := uuid.FromString(c.Media.TokenNamespace); err != nil {
		return fmt.Errorf("MEDIA_TOKEN_NAMESPACE must be a valid UUID")
	}
	// stay away from well-known ports
	if p := c.HTTP.Port; p < 1024 || p > 65535 {
		return fmt.Errorf("HTTP_PORT must be a positive int between 1024 and 65535, got %d", p)
	}
	if c.HTTP.Timeouts.Read <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT must be positive (e.g., 5s), got %s", c.HTTP.Timeouts.Read)
	}
	if c.HTTP.Timeouts.Write <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive (e.g., 30s), got %s", c.HTTP.Timeouts.Write)
	}
	if c.HTTP.Timeouts.Idle <= 0 {
		return fmt.Errorf("HTTP_IDLE_TIMEOUT must be positive (e.g., 2m), got %s", c.HTTP.Timeouts.Idle)
	}
	if c.HTTP.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_DELAY must be positive (e.g., 10s), got %s", c.HTTP.Timeouts.Shutdown)
	}
	if c.Limiter.RPS <= 0 {
		return fmt.Errorf("LIMITER_RPS must be positive, got %d", c.Limiter.RPS)
	}
	if c.Limiter.Burst <= 0 {
		return fmt.Errorf("LIMITER_BURST must be positive, got %d", c.Limiter.Burst)
	}

	return nil
}
