package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Upload    UploadConfig
	Session   SessionConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type UploadConfig struct {
	MaxBytes     int64
	ParseWorkers int
}

type SessionConfig struct {
	CookieName    string
	TTL           time.Duration
	MaxSessions   int
	SweepSchedule string
	SecureCookie  bool
}

// DashboardConfig controls what every session sees. SeedFile, when set,
// is loaded at startup as the initial dataset of new sessions.
type DashboardConfig struct {
	SeedFile     string
	PreviewRows  int
	ScatterLimit int
	ChartWidth   int
	ChartHeight  int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableCSRF      bool
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableCSRF:      getEnvBool("SECURITY_CSRF_ENABLED", true),
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Upload: UploadConfig{
			MaxBytes:     getEnvInt64("UPLOAD_MAX_BYTES", 50<<20),
			ParseWorkers: getEnvInt("UPLOAD_PARSE_WORKERS", 4),
		},
		Session: SessionConfig{
			CookieName:    getEnvString("SESSION_COOKIE_NAME", "explorer_session"),
			TTL:           getEnvDuration("SESSION_TTL", 30*time.Minute),
			MaxSessions:   getEnvInt("SESSION_MAX", 200),
			SweepSchedule: getEnvString("SESSION_SWEEP_SCHEDULE", "@every 1m"),
			SecureCookie:  getEnvBool("SESSION_SECURE_COOKIE", false),
		},
		Dashboard: DashboardConfig{
			SeedFile:     getEnvString("DATA_FILE", ""),
			PreviewRows:  getEnvInt("DASHBOARD_PREVIEW_ROWS", 100),
			ScatterLimit: getEnvInt("DASHBOARD_SCATTER_LIMIT", 5000),
			ChartWidth:   getEnvInt("DASHBOARD_CHART_WIDTH", 640),
			ChartHeight:  getEnvInt("DASHBOARD_CHART_HEIGHT", 360),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload size limit must be positive")
	}

	if c.Upload.ParseWorkers <= 0 {
		return fmt.Errorf("upload parse workers must be positive")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name cannot be empty")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session limit must be positive")
	}

	if c.Dashboard.PreviewRows < 0 {
		return fmt.Errorf("preview rows cannot be negative")
	}

	if c.Dashboard.ChartWidth < 200 || c.Dashboard.ChartHeight < 150 {
		return fmt.Errorf("chart size must be at least 200x150, got %dx%d", c.Dashboard.ChartWidth, c.Dashboard.ChartHeight)
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
