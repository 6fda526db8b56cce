// Package config centralizes how bodymetrics reads environment variables and
// exposes them as typed values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration shared by the server, api, worker
// and CLI binaries. Not every binary uses every field; each main validates the
// subset it depends on via Require.
type Config struct {
	Address     string
	Environment string

	// Remote pose-estimation service. Always injected, never hard-coded.
	AnalyzerURL     string
	AnalyzerTimeout time.Duration

	// Intake validation boundary.
	MaxFileSize  int64
	AllowedTypes []string

	// Staged-progress simulation.
	UploadTick time.Duration
	UploadStep int

	// Split mode (api + worker).
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Workers       int

	// Blob staging. Local temp staging is used when no S3 endpoint is set.
	StagingDir  string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Bucket    string
	S3UseSSL    bool

	SentryDSN string
}

const (
	defaultAddress         = ":8080"
	defaultMaxFileSize     = 200 << 20 // 200 MiB, inclusive
	defaultAllowedTypes    = "video/mp4,video/avi,video/mov,video/quicktime,video/x-msvideo,video/x-matroska,video/mpeg,image/jpeg,image/png,image/webp"
	defaultAnalyzerTimeout = 2 * time.Minute
	defaultUploadTick      = 200 * time.Millisecond
	defaultUploadStep      = 10
	defaultWorkerCount     = 1
	defaultS3Bucket        = "bodymetrics-media"
)

// Load reads configuration from the environment, with an optional .env file
// for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg := &Config{
		Address:         readEnv("BODYMETRICS_ADDRESS", defaultAddress),
		Environment:     readEnv("BODYMETRICS_ENV", "development"),
		AnalyzerURL:     readEnv("BODYMETRICS_ANALYZER_URL", ""),
		AnalyzerTimeout: parseDuration("BODYMETRICS_ANALYZER_TIMEOUT", defaultAnalyzerTimeout),
		MaxFileSize:     parseInt64("BODYMETRICS_MAX_FILE_BYTES", defaultMaxFileSize),
		AllowedTypes:    parseList("BODYMETRICS_ALLOWED_TYPES", defaultAllowedTypes),
		UploadTick:      parseDuration("BODYMETRICS_UPLOAD_TICK", defaultUploadTick),
		UploadStep:      parseInt("BODYMETRICS_UPLOAD_STEP", defaultUploadStep),
		DatabaseURL:     readEnv("BODYMETRICS_DATABASE_URL", ""),
		RedisAddr:       readEnv("BODYMETRICS_REDIS_ADDR", ""),
		RedisPassword:   readEnv("BODYMETRICS_REDIS_PASSWORD", ""),
		RedisDB:         parseInt("BODYMETRICS_REDIS_DB", 0),
		Workers:         parseInt("BODYMETRICS_WORKERS", defaultWorkerCount),
		StagingDir:      readEnv("BODYMETRICS_STAGING_DIR", ""),
		S3Endpoint:      readEnv("BODYMETRICS_S3_ENDPOINT", ""),
		S3AccessKey:     readEnv("BODYMETRICS_S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("BODYMETRICS_S3_SECRET_KEY", ""),
		S3Region:        readEnv("BODYMETRICS_S3_REGION", ""),
		S3Bucket:        readEnv("BODYMETRICS_S3_BUCKET", defaultS3Bucket),
		S3UseSSL:        parseBool("BODYMETRICS_S3_USE_SSL", false),
		SentryDSN:       readEnv("BODYMETRICS_SENTRY_DSN", ""),
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.UploadTick <= 0 {
		cfg.UploadTick = defaultUploadTick
	}
	if cfg.UploadStep <= 0 {
		cfg.UploadStep = defaultUploadStep
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	return cfg, nil
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Require fails with a descriptive error when any of the named settings is
// empty. Keys are the environment variable names.
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		"BODYMETRICS_ANALYZER_URL": c.AnalyzerURL,
		"BODYMETRICS_DATABASE_URL": c.DatabaseURL,
		"BODYMETRICS_REDIS_ADDR":   c.RedisAddr,
		"BODYMETRICS_S3_ENDPOINT":  c.S3Endpoint,
	}
	for _, key := range keys {
		if values[key] == "" {
			return fmt.Errorf("missing required configuration %s", key)
		}
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	out := strings.Split(val, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
