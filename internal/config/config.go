package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	SignedURLTTL time.Duration // Expiry for evidence download links - default: 1 hour

	// Evidence engine
	UploadMaxSize     int64
	UploadConcurrency int
	ReconcileDebug    bool
	OrphanSweepOnLoad bool
	GhostRetryDelay   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Evidence"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/evidence.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:     envRequired("S3_REGION"),
		S3Bucket:     envRequired("S3_BUCKET"),
		S3AccessKey:  envRequired("S3_ACCESS_KEY"),
		S3SecretKey:  envRequired("S3_SECRET_KEY"),
		S3Endpoint:   envString("S3_ENDPOINT", ""),
		SignedURLTTL: envDuration("S3_SIGNED_URL_TTL", 1*time.Hour),

		// Evidence engine
		UploadMaxSize:     envInt64("UPLOAD_MAX_SIZE", 10<<20), // 10MB
		UploadConcurrency: int(envInt64("UPLOAD_CONCURRENCY", 4)),
		ReconcileDebug:    envBool("RECONCILE_DEBUG", false),
		OrphanSweepOnLoad: envBool("ORPHAN_SWEEP_ON_LOAD", true),
		GhostRetryDelay:   envDuration("GHOST_RETRY_DELAY", 800*time.Millisecond),
	}

	if cfg.UploadConcurrency < 1 {
		slog.Warn("config UPLOAD_CONCURRENCY must be positive, using 1", "value", cfg.UploadConcurrency)
		cfg.UploadConcurrency = 1
	}

	return cfg
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets and credentials are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		Port:    c.Port,

		DBDriver: c.DBDriver,

		S3Region:     c.S3Region,
		S3Bucket:     c.S3Bucket,
		S3Endpoint:   c.S3Endpoint,
		SignedURLTTL: c.SignedURLTTL,

		UploadMaxSize:     c.UploadMaxSize,
		UploadConcurrency: c.UploadConcurrency,
		ReconcileDebug:    c.ReconcileDebug,
		OrphanSweepOnLoad: c.OrphanSweepOnLoad,
		GhostRetryDelay:   c.GhostRetryDelay,
	}
}
