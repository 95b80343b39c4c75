package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL string
	Port  int

	APIKeys   map[string]string // apiKey -> principal
	JWTSecret string

	LogLevel  slog.Level
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration

	// CSVDelimiter separates fields in ingested files.
	CSVDelimiter rune
	// IngestBaseDir, when set, confines local ingestion paths.
	IngestBaseDir string
	IngestLockTTL time.Duration

	CacheSize int
	CacheTTL  time.Duration

	MinIO MinIOConfig
	Redis RedisConfig
}

// MinIOConfig enables s3:// ingestion sources when Endpoint is set.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseTLS    bool
}

// RedisConfig enables the shared ingestion lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the API service configuration from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
// API_KEYS format: "name1:key1,name2:key2"
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if len(cfg.APIKeys) == 0 && cfg.JWTSecret == "" {
		return nil, errors.New("API_KEYS or JWT_SECRET required")
	}
	return cfg, nil
}

// LoadIngest reads the configuration of the one-shot ingestion CLI, which
// serves no API and needs no credentials.
func LoadIngest() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.DBURL = strings.TrimSpace(os.Getenv("DB_URL"))
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL required")
	}

	if cfg.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("SERVER_PORT: %w", err)
	}

	if cfg.APIKeys, err = parseAPIKeys(os.Getenv("API_KEYS")); err != nil {
		return nil, err
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	if cfg.LogLevel, err = parseLogLevel(getEnvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT: invalid format %q, allowed: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.CSVDelimiter, err = parseDelimiter(getEnvDefault("CSV_DELIMITER", ",")); err != nil {
		return nil, fmt.Errorf("CSV_DELIMITER: %w", err)
	}
	cfg.IngestBaseDir = strings.TrimSpace(os.Getenv("INGEST_BASE_DIR"))
	if cfg.IngestLockTTL, err = getEnvDuration("INGEST_LOCK_TTL", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("INGEST_LOCK_TTL: %w", err)
	}

	if cfg.CacheSize, err = getEnvInt("CACHE_SIZE", 1024); err != nil {
		return nil, fmt.Errorf("CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, errors.New("CACHE_SIZE: must be >= 0")
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}

	cfg.MinIO = MinIOConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
	}
	if cfg.MinIO.UseTLS, err = getEnvBool("MINIO_USE_TLS", false); err != nil {
		return nil, fmt.Errorf("MINIO_USE_TLS: %w", err)
	}

	cfg.Redis = RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}

	return cfg, nil
}

// SetupLogger builds the process logger and installs it as slog default.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseAPIKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return keys, nil
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`API_KEYS must be "name:key,name:key"`)
		}
		name := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if name == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "name:key,name:key"`)
		}
		keys[key] = name
	}
	return keys, nil
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("must be a single character, got %q", s)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%q cannot be used as a delimiter", s)
	}
	return r, nil
}

func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q (use Go format: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be > 0, got %q", val)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid boolean: %q", val)
	}
	return b, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid level %q, allowed: debug, info, warn, error", level)
	}
}
