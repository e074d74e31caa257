package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage/httpstore"
	miniostore "github.com/utafrali/EcommerceGo/mediapipeline/internal/storage/minio"
	pkgconfig "github.com/utafrali/EcommerceGo/mediapipeline/pkg/config"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/database"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httpclient"
	pkgkafka "github.com/utafrali/EcommerceGo/mediapipeline/pkg/kafka"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/middleware"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/tracing"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageMinIO  = "minio"
	StorageHTTP   = "http"
)

// Manifest repositories.
const (
	RepositoryMemory   = "memory"
	RepositoryPostgres = "postgres"
)

// Product lease lockers.
const (
	LockerLocal = "local"
	LockerRedis = "redis"
)

// Config holds all configuration for the media pipeline service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// HTTP server
	HTTPPort int `env:"MEDIA_HTTP_PORT" envDefault:"8020"`

	// Backends
	StorageBackend string `env:"MEDIA_STORAGE_BACKEND" envDefault:"memory" validate:"oneof=memory minio http"`
	Repository     string `env:"MEDIA_REPOSITORY" envDefault:"postgres" validate:"oneof=memory postgres"`
	Locker         string `env:"MEDIA_LOCKER" envDefault:"local" validate:"oneof=local redis"`

	// How long a product stays leased to an abandoned draft.
	DraftLeaseTTL time.Duration `env:"MEDIA_DRAFT_LEASE_TTL" envDefault:"4h"`

	// Base URL for object access (used by memory storage).
	BaseURL string `env:"MEDIA_BASE_URL" envDefault:""`

	// Asset list limits
	MaxAssets         int           `env:"MAX_ASSETS" envDefault:"8" validate:"gte=1,lte=64"`
	MaxBytesPerAsset  int64         `env:"MAX_BYTES_PER_ASSET" envDefault:"5242880" validate:"gte=1"`
	AllowedMimeTypes  []string      `env:"ALLOWED_MIME_TYPES" envDefault:"image/jpeg,image/png,image/webp" envSeparator:"," validate:"min=1,dive,required"`
	AspectRatio       string        `env:"DEFAULT_ASPECT_RATIO" envDefault:"4:3" validate:"aspect_ratio"`
	RolePolicy        string        `env:"ROLE_POLICY" envDefault:"positional" validate:"oneof=positional sticky"`
	UploadConcurrency int           `env:"UPLOAD_CONCURRENCY" envDefault:"4" validate:"gte=1,lte=32"`
	UploadTimeout     time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"30s"`
	PurgeConcurrency  int           `env:"PURGE_CONCURRENCY" envDefault:"4" validate:"gte=1,lte=32"`
	JPEGQuality       int           `env:"JPEG_QUALITY" envDefault:"90" validate:"gte=1,lte=100"`

	// Slow query logging
	SlowQueryThreshold time.Duration `env:"LOG_SLOW_QUERY" envDefault:"500ms"`

	Tracing    tracing.Config
	Postgres   database.PostgresConfig    `envPrefix:"POSTGRES_"`
	Redis      database.RedisConfig       `envPrefix:"REDIS_"`
	Kafka      pkgkafka.ProducerConfig    `envPrefix:"KAFKA_"`
	MinIO      miniostore.Config          `envPrefix:"MINIO_"`
	MediaAPI   httpstore.Config           `envPrefix:"MEDIA_API_"`
	HTTPClient httpclient.Config          `envPrefix:"MEDIA_API_HTTP_"`
	RateLimit  middleware.RateLimitConfig `envPrefix:"MEDIA_RATE_LIMIT_"`
	Auth       middleware.AuthConfig      `envPrefix:"MEDIA_AUTH_"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadAndValidate(cfg); err != nil {
		return nil, fmt.Errorf("load media pipeline config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.UploadTimeout <= 0 {
		return nil, fmt.Errorf("UPLOAD_TIMEOUT must be positive, got %s", cfg.UploadTimeout)
	}
	if cfg.DraftLeaseTTL <= 0 {
		return nil, fmt.Errorf("MEDIA_DRAFT_LEASE_TTL must be positive, got %s", cfg.DraftLeaseTTL)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	switch cfg.StorageBackend {
	case StorageMinIO:
		if cfg.MinIO.Endpoint == "" || cfg.MinIO.Bucket == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio backend")
		}
	case StorageHTTP:
		if cfg.MediaAPI.BaseURL == "" {
			return nil, fmt.Errorf("MEDIA_API_BASE_URL is required for the http backend")
		}
	}
	if cfg.Auth.Enabled && cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("MEDIA_AUTH_JWT_SECRET is required when authentication is enabled")
	}
	if cfg.Locker == LockerRedis && cfg.Redis.Host == "" {
		return nil, fmt.Errorf("REDIS_HOST is required for the redis locker")
	}
	if cfg.Repository == RepositoryPostgres && cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("POSTGRES_HOST is required")
	}
	return cfg, nil
}

// Limits returns the asset list limits. Load has already checked the
// aspect ratio, so a parse failure falls back to the default.
func (c *Config) Limits() domain.Limits {
	aspect, err := domain.ParseAspectRatio(c.AspectRatio)
	if err != nil {
		aspect = domain.DefaultAspectRatio
	}

	mimes := make([]string, 0, len(c.AllowedMimeTypes))
	for _, m := range c.AllowedMimeTypes {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			mimes = append(mimes, m)
		}
	}

	return domain.Limits{
		MaxAssets:         c.MaxAssets,
		MaxBytesPerAsset:  c.MaxBytesPerAsset,
		AllowedMimeTypes:  mimes,
		AspectRatio:       aspect,
		RolePolicy:        domain.RolePolicy(c.RolePolicy),
		UploadConcurrency: c.UploadConcurrency,
		UploadTimeout:     c.UploadTimeout,
	}.WithDefaults()
}

// BaseURLOrDefault returns the configured object base URL, or the service's
// own address when none is set.
func (c *Config) BaseURLOrDefault() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.HTTPPort)
}
