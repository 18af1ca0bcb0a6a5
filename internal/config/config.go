package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Environment string
	ServiceName string
	ServerPort  string

	DBDriver      string
	DatabaseDSN   string
	DBOpTimeout   time.Duration
	DBMaxOpenConn int
	AutoMigrate   bool

	RedisAddr    string
	RedisDB      int
	RedisPass    string
	RedisTimeout time.Duration
	UserCacheTTL time.Duration

	JWTSecret           string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RotateRefreshTokens bool

	RateLimitRPM       int
	CORSAllowedOrigins []string
	TelemetryEndpoint  string
	TelemetryInsecure  bool
	SwaggerHost        string
}

// Load builds Config from environment with sensible defaults. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "userapi"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DatabaseDSN:   getEnv("DATABASE_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=UTC"),
		DBOpTimeout:   getEnvDuration("DB_OP_TIMEOUT", 5*time.Second),
		DBMaxOpenConn: getEnvInt("DB_MAX_OPEN_CONNS", 20),
		AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),

		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisTimeout: getEnvDuration("REDIS_TIMEOUT", 2*time.Second),
		UserCacheTTL: getEnvDuration("USER_CACHE_TTL", time.Hour),

		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		AccessTokenTTL:      getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:     getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RotateRefreshTokens: getEnvBool("ROTATE_REFRESH_TOKENS", false),

		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 600),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SwaggerHost:        os.Getenv("SWAGGER_HOST"),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return def
	}
	return cleaned
}
